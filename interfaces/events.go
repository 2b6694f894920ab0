package interfaces

import (
	"context"

	"github.com/customeros/mailsorter/dto"
)

type EventPublisher interface {
	PublishEmailsLabeled(ctx context.Context, event dto.EmailsLabeled) error
	Close() error
}
