package pipeline

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/internal/enum"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

// NoneLabel is the completion answer for "no label applies". It never maps
// to a provider label.
const NoneLabel = "None"

// ApplyLabels applies the associated labels of every categorized record at
// the provider and returns the records that reached labeled.
func (p *Pipeline) ApplyLabels(ctx context.Context, owner string) ([]*models.EmailRecord, error) {
	labeled, _, err := p.applyLabels(ctx, owner)
	return labeled, err
}

func (p *Pipeline) applyLabels(ctx context.Context, owner string) ([]*models.EmailRecord, dto.StageReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.ApplyLabels")
	defer span.Finish()
	tracing.TagComponentPipeline(span)
	tracing.TagOwner(span, owner)
	tracing.TagStage(span, StageLabel)

	report := dto.StageReport{Stage: StageLabel}

	records, err := p.loadRecords(ctx, owner, enum.EmailStatusCategorized)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, report, err
	}
	if len(records) == 0 {
		return nil, report, nil
	}

	existing, err := p.listLabels(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, report, err
	}
	cache := NewLabelCache(existing, func(ctx context.Context, name string) (*dto.Label, error) {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()
		return p.deps.Gateway.CreateLabel(callCtx, owner, name)
	})

	outcomes := p.forEach(ctx, StageLabel, records, func(ctx context.Context, record *models.EmailRecord) outcome {
		return p.labelOne(ctx, owner, cache, record)
	})
	report = fold(StageLabel, outcomes)
	tracing.LogObjectAsJson(span, "report", report)
	return advancedRecords(outcomes), report, nil
}

func (p *Pipeline) listLabels(ctx context.Context, owner string) ([]dto.Label, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	labels, err := p.deps.Gateway.ListLabels(callCtx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "listing labels")
	}
	return labels, nil
}

func (p *Pipeline) labelOne(ctx context.Context, owner string, cache *LabelCache, record *models.EmailRecord) outcome {
	// nothing has reached the provider yet, a cancelled run leaves the record as is
	if err := ctx.Err(); err != nil {
		return failed(record, err)
	}

	var ids []string
	var unresolved error
	for _, name := range record.AssociatedLabels {
		if name == NoneLabel || strings.TrimSpace(name) == "" {
			continue
		}
		id, err := cache.Resolve(ctx, name)
		if err != nil {
			p.log.Warnf("Unable to resolve label %q for %s: %v", name, record.EmailID, err)
			unresolved = errors.Wrapf(err, "resolving label %q", name)
			continue
		}
		ids = utils.UnionStrings(ids, []string{id})
	}

	if len(ids) > 0 {
		callCtx, cancel := p.callContext(ctx)
		err := p.deps.Gateway.ModifyMessageLabels(callCtx, owner, record.EmailID, ids)
		cancel()
		if err != nil {
			return p.labelFailed(ctx, record, errors.Wrap(err, "applying labels"))
		}
	}

	// the applied ids stay on the message, the record is retried next run
	if unresolved != nil {
		return p.labelFailed(ctx, record, unresolved)
	}

	commitCtx, cancel := p.detachedContext(ctx)
	defer cancel()
	moved, err := p.deps.Records.UpdateStatus(commitCtx, record.ID, enum.EmailStatusCategorized, enum.EmailStatusLabeled)
	if err != nil {
		return failed(record, err)
	}
	if !moved {
		return skipped(record, nil)
	}
	record.Status = enum.EmailStatusLabeled
	return advanced(record)
}

// labelFailed counts the failed attempt on the record. A record that keeps
// failing, e.g. on a label name the provider refuses, is reported at error
// level every stuckLabelAttempts attempts.
func (p *Pipeline) labelFailed(ctx context.Context, record *models.EmailRecord, err error) outcome {
	commitCtx, cancel := p.detachedContext(ctx)
	defer cancel()

	attempts, countErr := p.deps.Records.RecordLabelFailure(commitCtx, record.ID)
	if countErr != nil {
		p.log.Warnf("Unable to count label attempt of %s: %v", record.ID, countErr)
		return failed(record, err)
	}
	record.LabelAttempts = attempts
	if p.isStuck(attempts) {
		p.log.With(zap.String("owner", record.Owner), zap.String("recordId", record.ID), zap.Int("attempts", attempts)).
			Errorf("Labels of message %s keep failing: %v", record.EmailID, err)
	}
	return failed(record, err)
}

func (p *Pipeline) isStuck(attempts int) bool {
	return attempts > 0 && attempts%p.stuckLabelAttempts == 0
}
