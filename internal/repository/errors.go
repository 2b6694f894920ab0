package repository

import "errors"

var (
	ErrEmailRecordNotFound = errors.New("email record not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidInput        = errors.New("invalid input parameters")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
