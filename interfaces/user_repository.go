package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsorter/internal/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListLinked(ctx context.Context) ([]*models.User, error)
	// AdvanceLastFetched moves the checkpoint to t unless it is already later.
	AdvanceLastFetched(ctx context.Context, id string, t time.Time) error
}
