package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsorter/internal/enum"
	"github.com/customeros/mailsorter/internal/utils"
)

// EmailRecord tracks one provider message through the labeling lifecycle.
type EmailRecord struct {
	ID               string           `gorm:"column:id;type:varchar(50);primaryKey"`
	Owner            string           `gorm:"column:owner;type:varchar(255);not null;uniqueIndex:uq_email_records_owner_email,priority:1;index:idx_email_records_owner_status,priority:1"`
	EmailID          string           `gorm:"column:email_id;type:varchar(255);not null;uniqueIndex:uq_email_records_owner_email,priority:2"`
	ThreadID         string           `gorm:"column:thread_id;type:varchar(255);index"`
	Content          *string          `gorm:"column:content;type:text"`
	AssociatedLabels Labels           `gorm:"column:associated_labels"`
	Status           enum.EmailStatus `gorm:"column:status;type:varchar(20);not null;index:idx_email_records_owner_status,priority:2"`
	LabelAttempts    int              `gorm:"column:label_attempts;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailRecord) TableName() string {
	return "email_records"
}

func (e *EmailRecord) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("erec", 24)
	}
	if e.Status == "" {
		e.Status = enum.EmailStatusIncomplete
	}
	now := utils.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (e *EmailRecord) ContentOrEmpty() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}
