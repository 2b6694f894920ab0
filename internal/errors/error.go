package errors

import "github.com/pkg/errors"

var (
	ErrOwnerMissing = errors.New("owner is missing")

	// user errors
	ErrUserNotFound   = errors.New("user not found")
	ErrUserNotLinked  = errors.New("user has no google oauth token")
	ErrRunInProgress  = errors.New("pipeline run already in progress for owner")
	ErrNoContent      = errors.New("message has no subject or plain text body")
	ErrLabelNotFound  = errors.New("label not found")
	ErrEmptyLabelName = errors.New("label name is empty")
)
