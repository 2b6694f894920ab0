package interfaces

import (
	"context"

	"github.com/customeros/mailsorter/dto"
)

type PipelineService interface {
	Run(ctx context.Context, owner string) (*dto.PipelineSummary, error)
}

// RunGuard is a best-effort cross-process marker that a run for an owner is
// active. Acquire fails open.
type RunGuard interface {
	Acquire(ctx context.Context, owner string) (release func(), acquired bool)
}
