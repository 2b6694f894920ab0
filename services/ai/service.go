package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/tracing"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type aiService struct {
	cfg    *config.OpenAIConfig
	client *http.Client
}

func NewAIService(cfg *config.OpenAIConfig) interfaces.CompletionService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &aiService{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete sends the prompt as the system message followed by the history
// and returns the first choice.
func (s *aiService) Complete(ctx context.Context, systemPrompt string, history []dto.ChatMessage) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.Complete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentCompletion(span)

	if s.cfg.ApiKey == "" {
		err := errors.New("LLM_API_KEY is not configured")
		tracing.TraceErr(span, err)
		return "", err
	}

	request := chatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    buildMessages(systemPrompt, history),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
	span.LogKV("model", request.Model, "messages", len(request.Messages))

	payload, err := json.Marshal(request)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to marshal payload")
	}

	url := strings.TrimSuffix(s.cfg.Url, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.ApiKey)
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return "", err
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Choices) == 0 {
		err = errors.New("completion returned no choices")
		tracing.TraceErr(span, err)
		return "", err
	}

	completion := response.Choices[0].Message.Content
	span.LogKV("completion", completion)
	return completion, nil
}

func buildMessages(systemPrompt string, history []dto.ChatMessage) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+1)
	messages = append(messages, chatMessage{Role: roleSystem, Content: systemPrompt})
	for _, h := range history {
		role := roleUser
		if h.FromAssistant {
			role = roleAssistant
		}
		messages = append(messages, chatMessage{Role: role, Content: h.Text})
	}
	return messages
}
