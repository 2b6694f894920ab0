package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
)

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository reads rules maintained by the rule editor.
func NewRuleRepository(db *gorm.DB) interfaces.RuleSource {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) GetRules(ctx context.Context, owner string) ([]dto.Rule, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ruleRepository.GetRules")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagOwner(span, owner)

	var rules []models.Rule
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}

	result := make([]dto.Rule, 0, len(rules))
	for _, rule := range rules {
		result = append(result, dto.Rule{Name: rule.Name, Prompt: rule.Prompt})
	}
	span.LogKV("count", len(result))
	return result, nil
}
