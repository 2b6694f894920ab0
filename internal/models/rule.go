package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsorter/internal/utils"
)

type Rule struct {
	ID     string `gorm:"column:id;type:varchar(50);primaryKey"`
	Owner  string `gorm:"column:owner;type:varchar(255);not null;index"`
	Name   string `gorm:"column:name;type:varchar(255);not null"`
	Prompt string `gorm:"column:prompt;type:text;not null"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Rule) TableName() string {
	return "rules"
}

func (r *Rule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("rule", 24)
	}
	now := utils.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}
