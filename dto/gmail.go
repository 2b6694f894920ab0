package dto

import "strings"

// MessageRef identifies a provider message returned by a list call.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type MessagePage struct {
	Messages      []MessageRef `json:"messages"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// BodyPart is one leaf of the message MIME tree with its still-encoded data.
type BodyPart struct {
	MimeType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
}

type MessageContent struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"threadId"`
	Subject   string     `json:"subject"`
	BodyParts []BodyPart `json:"bodyParts"`
}

const (
	LabelTypeSystem = "system"
	LabelTypeUser   = "user"
)

type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func (l Label) IsSystem() bool {
	return l.Type == LabelTypeSystem
}

// Matches reports whether name refers to this label. User labels compare
// case-insensitively like Gmail does; system labels (INBOX, SPAM, TRASH...)
// only match their exact name.
func (l Label) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if l.IsSystem() {
		return l.Name == name
	}
	return strings.EqualFold(l.Name, name)
}
