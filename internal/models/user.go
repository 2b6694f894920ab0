package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsorter/internal/utils"
)

// User is provisioned by the sign-in flow. The pipeline only reads the OAuth
// tokens and moves the fetch checkpoint.
type User struct {
	ID                       string     `gorm:"column:id;type:varchar(255);primaryKey"`
	Email                    string     `gorm:"column:email;type:varchar(255);index"`
	GivenName                string     `gorm:"column:given_name;type:varchar(255)"`
	FamilyName               string     `gorm:"column:family_name;type:varchar(255)"`
	GoogleOauthToken         string     `gorm:"column:google_oauth_token;type:text"`
	GoogleRefreshToken       string     `gorm:"column:google_refresh_token;type:text"`
	LastFetchedEmailDatetime *time.Time `gorm:"column:last_fetched_email_datetime;type:timestamp"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = utils.GenerateNanoIDWithPrefix("user", 24)
	}
	now := utils.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// FetchCheckpoint returns the lower bound for the next inbox query. A user
// that never fetched starts from the Unix epoch.
func (u *User) FetchCheckpoint() time.Time {
	if u.LastFetchedEmailDatetime == nil || u.LastFetchedEmailDatetime.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return *u.LastFetchedEmailDatetime
}
