package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsorter/internal/utils"
)

const (
	HeaderUserId    = "X-USER-ID"
	HeaderUserEmail = "X-USER-EMAIL"
)

// UserIdMiddleware copies the caller identity headers into the gin context.
// The user id is the owner whose mailbox the request acts on.
func UserIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(utils.GinKeyUserId, strings.TrimSpace(c.GetHeader(HeaderUserId)))
		c.Set(utils.GinKeyUserEmail, strings.TrimSpace(c.GetHeader(HeaderUserEmail)))
		c.Next()
	}
}
