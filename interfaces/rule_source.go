package interfaces

import (
	"context"

	"github.com/customeros/mailsorter/dto"
)

type RuleSource interface {
	GetRules(ctx context.Context, owner string) ([]dto.Rule, error)
}
