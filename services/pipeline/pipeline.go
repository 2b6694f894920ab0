package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/enum"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/metrics"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

const (
	defaultConcurrency        = 4
	defaultCallTimeout        = 30 * time.Second
	defaultStuckLabelAttempts = 5
)

type Dependencies struct {
	Records    interfaces.EmailRecordRepository
	Users      interfaces.UserRepository
	Rules      interfaces.RuleSource
	Gateway    interfaces.MailGateway
	Completion interfaces.CompletionService
	// optional
	Events interfaces.EventPublisher
	Guard  interfaces.RunGuard
}

// Pipeline moves an owner's emails through fetch, extract, categorize and
// label. Each stage only reads records in its source status, so a run can be
// interrupted at any point and resumed by the next one.
type Pipeline struct {
	deps        Dependencies
	log         logger.Logger
	concurrency int
	callTimeout time.Duration
	// failed label attempts after which a record is reported as stuck
	stuckLabelAttempts int
}

var _ interfaces.PipelineService = (*Pipeline)(nil)

func NewPipeline(deps Dependencies, cfg *config.PipelineConfig, log logger.Logger) *Pipeline {
	p := &Pipeline{
		deps:        deps,
		log:         log,
		concurrency:        defaultConcurrency,
		callTimeout:        defaultCallTimeout,
		stuckLabelAttempts: defaultStuckLabelAttempts,
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			p.concurrency = cfg.Concurrency
		}
		if cfg.CallTimeout > 0 {
			p.callTimeout = cfg.CallTimeout
		}
		if cfg.StuckLabelAttempts > 0 {
			p.stuckLabelAttempts = cfg.StuckLabelAttempts
		}
	}
	return p
}

func (p *Pipeline) Run(ctx context.Context, owner string) (*dto.PipelineSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.Run")
	defer span.Finish()
	tracing.TagComponentPipeline(span)
	tracing.TagOwner(span, owner)

	if owner == "" {
		return nil, mserrors.ErrOwnerMissing
	}

	if p.deps.Guard != nil {
		release, acquired := p.deps.Guard.Acquire(ctx, owner)
		if !acquired {
			return nil, errors.Wrap(mserrors.ErrRunInProgress, owner)
		}
		defer release()
	}

	ctx = utils.SetUserIdInContext(ctx, owner)
	log := p.log.With(zap.String("owner", owner))

	summary := &dto.PipelineSummary{Owner: owner, StartedAt: utils.Now()}
	status := "ok"
	defer func() {
		metrics.RecordRun(status, time.Since(summary.StartedAt))
	}()

	fail := func(stage string, err error) (*dto.PipelineSummary, error) {
		status = "failed"
		tracing.TraceErr(span, err)
		log.Errorf("Pipeline stopped at %s stage: %v", stage, err)
		return nil, errors.Wrapf(err, "%s stage", stage)
	}

	created, report, err := p.fetch(ctx, owner)
	if err != nil {
		return fail(StageFetch, err)
	}
	p.addStage(summary, report)
	summary.Fetched = len(created)

	report, err = p.ExtractContent(ctx, owner)
	if err != nil {
		return fail(StageExtract, err)
	}
	p.addStage(summary, report)

	report, err = p.Categorize(ctx, owner)
	if err != nil {
		return fail(StageCategorize, err)
	}
	p.addStage(summary, report)

	labeled, report, err := p.applyLabels(ctx, owner)
	if err != nil {
		return fail(StageLabel, err)
	}
	p.addStage(summary, report)

	summary.Labeled = len(labeled)
	summary.Message = fmt.Sprintf("%d emails labeled", summary.Labeled)
	summary.FinishedAt = utils.Now()
	tracing.LogObjectAsJson(span, "summary", summary)
	log.Info(summary.Message)

	p.publishLabeled(ctx, summary, labeled)
	return summary, nil
}

func (p *Pipeline) addStage(summary *dto.PipelineSummary, report dto.StageReport) {
	summary.Stages = append(summary.Stages, report)
	metrics.RecordStage(report)
}

func (p *Pipeline) publishLabeled(ctx context.Context, summary *dto.PipelineSummary, labeled []*models.EmailRecord) {
	if p.deps.Events == nil {
		return
	}
	emailIds := make([]string, 0, len(labeled))
	for _, r := range labeled {
		emailIds = append(emailIds, r.EmailID)
	}

	publishCtx, cancel := p.detachedContext(ctx)
	defer cancel()
	err := p.deps.Events.PublishEmailsLabeled(publishCtx, dto.EmailsLabeled{
		Owner:    summary.Owner,
		EmailIds: emailIds,
		Summary:  *summary,
	})
	if err != nil {
		p.log.Warnf("Unable to publish EmailsLabeled for %s: %v", summary.Owner, err)
	}
}

// loadRecords reads the owner's records sitting in status. A failure here has
// no record scope and aborts the stage.
func (p *Pipeline) loadRecords(ctx context.Context, owner string, status enum.EmailStatus) ([]*models.EmailRecord, error) {
	records, err := p.deps.Records.Find(ctx, owner, status)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s records", status)
	}
	return records, nil
}

// forEach runs handle for every record with bounded parallelism and returns
// the outcomes in record order. Handlers report failures as outcomes, so one
// bad record never stops the others.
func (p *Pipeline) forEach(ctx context.Context, stage string, records []*models.EmailRecord, handle func(context.Context, *models.EmailRecord) outcome) []outcome {
	outcomes := make([]outcome, len(records))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = failed(record, errors.Errorf("panic: %v", r))
				}
			}()
			outcomes[i] = handle(ctx, record)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.result == resultFailed {
			p.log.With(zap.String("stage", stage), zap.String("owner", o.record.Owner), zap.String("recordId", o.record.ID)).
				Errorf("Record failed: %v", o.err)
		}
	}
	return outcomes
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.callTimeout)
}

// detachedContext is used for writes that record a provider side effect that
// already happened. It survives cancellation of the run.
func (p *Pipeline) detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.callTimeout)
}
