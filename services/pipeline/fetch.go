package pipeline

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/internal/enum"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

// FetchNew lists inbox messages newer than the owner's checkpoint, stores them
// as incomplete records and returns the ones not seen before.
func (p *Pipeline) FetchNew(ctx context.Context, owner string) ([]*models.EmailRecord, error) {
	created, _, err := p.fetch(ctx, owner)
	return created, err
}

func (p *Pipeline) fetch(ctx context.Context, owner string) ([]*models.EmailRecord, dto.StageReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.FetchNew")
	defer span.Finish()
	tracing.TagComponentPipeline(span)
	tracing.TagOwner(span, owner)
	tracing.TagStage(span, StageFetch)

	report := dto.StageReport{Stage: StageFetch}

	user, err := p.deps.Users.GetByID(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, report, err
	}
	if user == nil {
		return nil, report, errors.Wrap(mserrors.ErrUserNotFound, owner)
	}

	after := user.FetchCheckpoint()
	fetchedAt := utils.Now()
	span.LogKV("after", after)

	refs, err := p.listAll(ctx, owner, after)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, report, err
	}

	created := make([]*models.EmailRecord, 0, len(refs))
	for _, ref := range refs {
		record := &models.EmailRecord{
			Owner:    owner,
			EmailID:  ref.ID,
			ThreadID: ref.ThreadID,
			Status:   enum.EmailStatusIncomplete,
		}
		isNew, err := p.deps.Records.Create(ctx, record)
		if err != nil {
			// checkpoint stays put, the next run lists these again
			tracing.TraceErr(span, err)
			return nil, report, errors.Wrapf(err, "storing message %s", ref.ID)
		}
		if isNew {
			created = append(created, record)
		}
	}

	if err := p.deps.Users.AdvanceLastFetched(ctx, owner, fetchedAt); err != nil {
		tracing.TraceErr(span, err)
		return nil, report, errors.Wrap(err, "advancing fetch checkpoint")
	}

	report.Total = len(refs)
	report.Advanced = len(created)
	report.Skipped = len(refs) - len(created)
	span.LogKV("listed", len(refs), "created", len(created))
	return created, report, nil
}

// listAll follows page tokens until the last page. Nothing is stored until
// every page has been read.
func (p *Pipeline) listAll(ctx context.Context, owner string, after time.Time) ([]dto.MessageRef, error) {
	var refs []dto.MessageRef
	pageToken := ""
	for {
		page, err := p.listPage(ctx, owner, after, pageToken)
		if err != nil {
			return nil, err
		}
		refs = append(refs, page.Messages...)
		if page.NextPageToken == "" {
			return refs, nil
		}
		pageToken = page.NextPageToken
	}
}

func (p *Pipeline) listPage(ctx context.Context, owner string, after time.Time, pageToken string) (*dto.MessagePage, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	page, err := p.deps.Gateway.ListMessages(callCtx, owner, after, pageToken)
	if err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}
	return page, nil
}
