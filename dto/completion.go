package dto

type ChatMessage struct {
	Text          string `json:"text"`
	FromAssistant bool   `json:"fromAssistant"`
}
