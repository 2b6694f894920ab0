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

// ListLabels returns the owner's labels at the provider.
func ListLabels(gateway interfaces.MailGateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListLabels")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		if err := utils.ValidateUserId(ctx); err != nil {
			apierrors.Respond(c, err)
			return
		}
		owner := utils.GetUserIdFromContext(ctx)

		labels, err := gateway.ListLabels(ctx, owner)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"labels": labels})
	}
}
