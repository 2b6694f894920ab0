package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) interfaces.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "userRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOwner(span, id)

	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListLinked returns users that granted mailbox access.
func (r *userRepository) ListLinked(ctx context.Context) ([]*models.User, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "userRepository.ListLinked")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("google_oauth_token <> ''").
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) AdvanceLastFetched(ctx context.Context, id string, t time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "userRepository.AdvanceLastFetched")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOwner(span, id)

	t = t.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND (last_fetched_email_datetime IS NULL OR last_fetched_email_datetime < ?)", id, t).
		Updates(map[string]interface{}{
			"last_fetched_email_datetime": t,
			"updated_at":                  utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to advance fetch checkpoint: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// nothing moved: either the checkpoint is already later or the user is gone
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to check user: %w", err)
	}
	if count == 0 {
		tracing.TraceErr(span, ErrUserNotFound)
		return ErrUserNotFound
	}
	return nil
}
