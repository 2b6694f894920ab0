package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/internal/enum"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/tracing"
)

const mimeTypeTextPlain = "text/plain"

var base64Normalizer = strings.NewReplacer("+", "-", "/", "_", "\r", "", "\n", "")

// ExtractContent downloads every incomplete record and stores its subject and
// plain text body.
func (p *Pipeline) ExtractContent(ctx context.Context, owner string) (dto.StageReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.ExtractContent")
	defer span.Finish()
	tracing.TagComponentPipeline(span)
	tracing.TagOwner(span, owner)
	tracing.TagStage(span, StageExtract)

	records, err := p.loadRecords(ctx, owner, enum.EmailStatusIncomplete)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.StageReport{Stage: StageExtract}, err
	}

	outcomes := p.forEach(ctx, StageExtract, records, func(ctx context.Context, record *models.EmailRecord) outcome {
		return p.extractOne(ctx, owner, record)
	})
	report := fold(StageExtract, outcomes)
	tracing.LogObjectAsJson(span, "report", report)
	return report, nil
}

func (p *Pipeline) extractOne(ctx context.Context, owner string, record *models.EmailRecord) outcome {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	msg, err := p.deps.Gateway.GetMessage(callCtx, owner, record.EmailID)
	if err != nil {
		return failed(record, err)
	}

	content, err := BuildContent(msg)
	if errors.Is(err, mserrors.ErrNoContent) {
		p.log.Warnf("Message %s of %s has no subject or plain text body, leaving it incomplete", record.EmailID, owner)
		return skipped(record, err)
	}
	if err != nil {
		return failed(record, err)
	}

	moved, err := p.deps.Records.SaveContent(callCtx, record.ID, content)
	if err != nil {
		return failed(record, err)
	}
	if !moved {
		return skipped(record, nil)
	}
	record.Content = &content
	record.Status = enum.EmailStatusUnprocessed
	return advanced(record)
}

// BuildContent renders the text handed to the completion engine. When a
// message carries several plain text parts the last one is used.
func BuildContent(msg *dto.MessageContent) (string, error) {
	if msg == nil {
		return "", mserrors.ErrNoContent
	}

	body := ""
	for _, part := range msg.BodyParts {
		if !isPlainText(part.MimeType) {
			continue
		}
		decoded, err := DecodeBase64(part.Base64Data)
		if err != nil {
			return "", errors.Wrapf(err, "decoding body of message %s", msg.ID)
		}
		body = decoded
	}

	if msg.Subject == "" || body == "" {
		return "", mserrors.ErrNoContent
	}
	return fmt.Sprintf("Subject: %s Content: %s", msg.Subject, body), nil
}

func isPlainText(mimeType string) bool {
	mediaType, _, _ := strings.Cut(mimeType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), mimeTypeTextPlain)
}

// DecodeBase64 accepts the URL safe and the standard alphabet, with or
// without padding.
func DecodeBase64(data string) (string, error) {
	normalized := strings.TrimRight(base64Normalizer.Replace(data), "=")
	decoded, err := base64.RawURLEncoding.DecodeString(normalized)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
