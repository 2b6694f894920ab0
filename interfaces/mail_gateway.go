package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsorter/dto"
)

type MailGateway interface {
	ListMessages(ctx context.Context, owner string, after time.Time, pageToken string) (*dto.MessagePage, error)
	GetMessage(ctx context.Context, owner, id string) (*dto.MessageContent, error)
	ListLabels(ctx context.Context, owner string) ([]dto.Label, error)
	CreateLabel(ctx context.Context, owner, name string) (*dto.Label, error)
	ModifyMessageLabels(ctx context.Context, owner, id string, addLabelIds []string) error
}

