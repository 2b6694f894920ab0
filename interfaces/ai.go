package interfaces

import (
	"context"

	"github.com/customeros/mailsorter/dto"
)

// CompletionService turns a system prompt plus prior turns into one text
// completion. Implementations do not retry.
type CompletionService interface {
	Complete(ctx context.Context, systemPrompt string, history []dto.ChatMessage) (string, error)
}
