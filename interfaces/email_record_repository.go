package interfaces

import (
	"context"

	"github.com/customeros/mailsorter/internal/enum"
	"github.com/customeros/mailsorter/internal/models"
)

// EmailRecordRepository persists email records. Every write that changes
// status is conditional on the expected current status and reports whether
// the row moved.
type EmailRecordRepository interface {
	// Create inserts the record, returning false when (owner, emailId) already exists.
	Create(ctx context.Context, record *models.EmailRecord) (bool, error)
	GetByID(ctx context.Context, id string) (*models.EmailRecord, error)
	GetByOwnerAndEmailID(ctx context.Context, owner, emailID string) (*models.EmailRecord, error)
	Find(ctx context.Context, owner string, status enum.EmailStatus) ([]*models.EmailRecord, error)
	CountByStatus(ctx context.Context, owner string) (map[enum.EmailStatus]int64, error)
	UpdateStatus(ctx context.Context, id string, from, to enum.EmailStatus) (bool, error)
	// SaveContent stores the extracted content and moves incomplete to unprocessed.
	SaveContent(ctx context.Context, id, content string) (bool, error)
	// SaveLabels unions labels into the record and moves unprocessed to categorized.
	SaveLabels(ctx context.Context, id string, labels []string) (bool, error)
	// RecordLabelFailure counts a failed label attempt on a categorized record
	// and returns the attempts so far.
	RecordLabelFailure(ctx context.Context, id string) (int, error)
}
