package pipeline

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/internal/enum"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

const classificationInstructions = `You have been provided with the content of an email. Using the following list of rules and their associated labels, determine what labels, if any should be applied to this email. Your response should come in the format of a comma-separated list of labels. If no labels apply, simply respond with "None".`

// Categorize asks the completion engine which labels apply to each
// unprocessed record, given the owner's rules.
func (p *Pipeline) Categorize(ctx context.Context, owner string) (dto.StageReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.Categorize")
	defer span.Finish()
	tracing.TagComponentPipeline(span)
	tracing.TagOwner(span, owner)
	tracing.TagStage(span, StageCategorize)

	report := dto.StageReport{Stage: StageCategorize}

	rules, err := p.deps.Rules.GetRules(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return report, errors.Wrap(err, "loading rules")
	}

	records, err := p.loadRecords(ctx, owner, enum.EmailStatusUnprocessed)
	if err != nil {
		tracing.TraceErr(span, err)
		return report, err
	}

	// the backlog waits for the owner's first rule and shows up as skipped
	if len(rules) == 0 {
		p.log.Infof("No rules for %s, leaving %d emails unprocessed", owner, len(records))
		span.LogKV("rules", 0)
		report.Total = len(records)
		report.Skipped = len(records)
		return report, nil
	}

	outcomes := p.forEach(ctx, StageCategorize, records, func(ctx context.Context, record *models.EmailRecord) outcome {
		return p.categorizeOne(ctx, rules, record)
	})
	report = fold(StageCategorize, outcomes)
	tracing.LogObjectAsJson(span, "report", report)
	return report, nil
}

func (p *Pipeline) categorizeOne(ctx context.Context, rules []dto.Rule, record *models.EmailRecord) outcome {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	response, err := p.deps.Completion.Complete(callCtx, BuildPrompt(rules, record.ContentOrEmpty()), nil)
	if err != nil {
		return failed(record, errors.Wrap(err, "completion"))
	}

	labels := ParseLabels(response)
	moved, err := p.deps.Records.SaveLabels(callCtx, record.ID, labels)
	if err != nil {
		return failed(record, err)
	}
	if !moved {
		return skipped(record, nil)
	}
	record.AssociatedLabels = utils.UnionStrings(record.AssociatedLabels, labels)
	record.Status = enum.EmailStatusCategorized
	return advanced(record)
}

func BuildPrompt(rules []dto.Rule, content string) string {
	var sb strings.Builder
	sb.WriteString(classificationInstructions)
	sb.WriteString("\nRules:\n")
	for _, rule := range rules {
		sb.WriteString("- ")
		sb.WriteString(rule.Prompt)
		sb.WriteString("\n")
	}
	sb.WriteString("Email Content: ")
	sb.WriteString(content)
	return sb.String()
}

// ParseLabels splits a comma separated completion into label names.
func ParseLabels(response string) []string {
	return utils.SplitAndTrim(response, ",")
}
