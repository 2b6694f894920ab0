package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mserrors "github.com/customeros/mailsorter/internal/errors"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps service errors to the HTTP status returned to callers.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, mserrors.ErrOwnerMissing):
		return http.StatusBadRequest
	case errors.Is(err, mserrors.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, mserrors.ErrUserNotLinked):
		return http.StatusPreconditionFailed
	case errors.Is(err, mserrors.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Respond(c *gin.Context, err error) {
	c.JSON(StatusFor(err), ErrorResponse{Error: err.Error()})
}
