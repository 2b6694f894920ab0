package utils

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	mserrors "github.com/customeros/mailsorter/internal/errors"
)

type CustomContext struct {
	AppSource string
	UserId    string
	UserEmail string
}

type contextKey string

const customContextKey contextKey = "CUSTOM_CONTEXT"

// Gin context keys filled by the api middleware.
const (
	GinKeyUserId    = "UserId"
	GinKeyUserEmail = "UserEmail"
)

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func WithCustomContextFromGinRequest(c *gin.Context, appSource string) context.Context {
	customContext := &CustomContext{
		AppSource: appSource,
		UserId:    c.GetString(GinKeyUserId),
		UserEmail: c.GetString(GinKeyUserEmail),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetUserIdFromContext(ctx context.Context) string {
	return GetContext(ctx).UserId
}

func GetUserEmailFromContext(ctx context.Context) string {
	return GetContext(ctx).UserEmail
}

// SetUserIdInContext copies the custom context before changing it so the
// parent context keeps its own owner.
func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	customContext := *GetContext(ctx)
	customContext.UserId = userId
	return WithCustomContext(ctx, &customContext)
}

func SetAppSourceInContext(ctx context.Context, appSource string) context.Context {
	customContext := *GetContext(ctx)
	customContext.AppSource = appSource
	return WithCustomContext(ctx, &customContext)
}

func ValidateUserId(ctx context.Context) error {
	if GetUserIdFromContext(ctx) == "" {
		return errors.WithStack(mserrors.ErrOwnerMissing)
	}
	return nil
}
