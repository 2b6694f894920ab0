package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/enum"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

type emailRecordRepository struct {
	db *gorm.DB
}

func NewEmailRecordRepository(db *gorm.DB) interfaces.EmailRecordRepository {
	return &emailRecordRepository{
		db: db,
	}
}

func (r *emailRecordRepository) Create(ctx context.Context, record *models.EmailRecord) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if record == nil || record.Owner == "" || record.EmailID == "" {
		return false, ErrInvalidInput
	}
	tracing.TagOwner(span, record.Owner)
	tracing.TagEntity(span, record.EmailID)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "email_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to create email record: %w", result.Error)
	}

	created := result.RowsAffected > 0
	span.SetTag("duplicate", !created)
	return created, nil
}

func (r *emailRecordRepository) GetByID(ctx context.Context, id string) (*models.EmailRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var record models.EmailRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

func (r *emailRecordRepository) GetByOwnerAndEmailID(ctx context.Context, owner, emailID string) (*models.EmailRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.GetByOwnerAndEmailID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOwner(span, owner)

	var record models.EmailRecord
	err := r.db.WithContext(ctx).
		Where("owner = ? AND email_id = ?", owner, emailID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

// Find returns the owner's records in the given status, oldest first.
func (r *emailRecordRepository) Find(ctx context.Context, owner string, status enum.EmailStatus) ([]*models.EmailRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.Find")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOwner(span, owner)
	span.SetTag("status", status.String())

	var records []*models.EmailRecord
	err := r.db.WithContext(ctx).
		Where("owner = ? AND status = ?", owner, status).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to find email records: %w", err)
	}

	span.LogKV("count", len(records))
	return records, nil
}

func (r *emailRecordRepository) CountByStatus(ctx context.Context, owner string) (map[enum.EmailStatus]int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.CountByStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOwner(span, owner)

	var rows []struct {
		Status enum.EmailStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.EmailRecord{}).
		Select("status, count(*) as count").
		Where("owner = ?", owner).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to count email records: %w", err)
	}

	counts := make(map[enum.EmailStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateStatus moves the record from -> to. It returns false without error
// when the record is no longer in from, which happens when an overlapping
// run advanced it first.
func (r *emailRecordRepository) UpdateStatus(ctx context.Context, id string, from, to enum.EmailStatus) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.LogKV("from", from.String(), "to", to.String())

	if !from.Before(to) {
		err := fmt.Errorf("%w: status %s cannot move to %s", ErrInvalidTransition, from, to)
		tracing.TraceErr(span, err)
		return false, err
	}

	result := r.db.WithContext(ctx).
		Model(&models.EmailRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to update email record status: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *emailRecordRepository) SaveContent(ctx context.Context, id, content string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.SaveContent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.EmailRecord{}).
		Where("id = ? AND status = ?", id, enum.EmailStatusIncomplete).
		Updates(map[string]interface{}{
			"content":    content,
			"status":     enum.EmailStatusUnprocessed,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to save email record content: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *emailRecordRepository) SaveLabels(ctx context.Context, id string, labels []string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.SaveLabels")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.LogKV("labels", labels)

	saved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.EmailRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmailRecordNotFound
			}
			return err
		}
		if record.Status != enum.EmailStatusUnprocessed {
			return nil
		}

		// the status guard makes a concurrent writer's union lose instead of clobbering
		merged := models.Labels(utils.UnionStrings(record.AssociatedLabels, labels))
		result := tx.Model(&models.EmailRecord{}).
			Where("id = ? AND status = ?", id, enum.EmailStatusUnprocessed).
			Updates(map[string]interface{}{
				"associated_labels": merged,
				"status":            enum.EmailStatusCategorized,
				"updated_at":        utils.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		saved = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to save email record labels: %w", err)
	}

	return saved, nil
}

func (r *emailRecordRepository) RecordLabelFailure(ctx context.Context, id string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRecordRepository.RecordLabelFailure")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var attempts int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.EmailRecord{}).
			Where("id = ? AND status = ?", id, enum.EmailStatusCategorized).
			Updates(map[string]interface{}{
				"label_attempts": gorm.Expr("label_attempts + 1"),
				"updated_at":     utils.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrEmailRecordNotFound
		}
		return tx.Model(&models.EmailRecord{}).
			Where("id = ?", id).
			Select("label_attempts").
			Scan(&attempts).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, fmt.Errorf("failed to record label failure: %w", err)
	}

	span.LogKV("attempts", attempts)
	return attempts, nil
}
