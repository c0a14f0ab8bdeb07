package dto

import (
	"errors"
)

// MaxContentLength bounds free-text fields such as insight text and queries.
const MaxContentLength = 10000

var (
	ErrContentTooLong = errors.New("content exceeds maximum length")
	ErrMissingScope   = errors.New("hospital scope is required: send X-Hospital-ID or hospital_id")
	ErrEmptyQuery     = errors.New("query cannot be empty")
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
