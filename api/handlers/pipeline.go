package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/customeros/mailsorter/api/errors"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

// RunPipeline runs fetch, extract, categorize and label for the calling owner
// and returns the run summary.
func RunPipeline(pipeline interfaces.PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RunPipeline")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		if err := utils.ValidateUserId(ctx); err != nil {
			apierrors.Respond(c, err)
			return
		}
		owner := utils.GetUserIdFromContext(ctx)

		summary, err := pipeline.Run(ctx, owner)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

// EmailStats returns how many of the owner's records sit in each status.
func EmailStats(records interfaces.EmailRecordRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailStats")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		if err := utils.ValidateUserId(ctx); err != nil {
			apierrors.Respond(c, err)
			return
		}
		owner := utils.GetUserIdFromContext(ctx)

		counts, err := records.CountByStatus(ctx, owner)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"owner": owner, "counts": counts})
	}
}
