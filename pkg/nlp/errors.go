package nlp

import "errors"

var (
	ErrRateLimit     = errors.New("rate limit exceeded. Please try again later")
	ErrRefusal       = errors.New("the model refused to respond to this prompt")
	ErrEmptyResponse = errors.New("the model returned an empty response")
	// ErrInvalidModel is returned by the factory for an unknown provider.
	ErrInvalidModel = errors.New("invalid model specified")
)

// RateLimitError is a provider 429. It is always retryable.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

// Is matches any *RateLimitError and ErrRateLimit.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimit {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a rate limit error with an optional message.
func NewRateLimitError(message ...string) *RateLimitError {
	err := &RateLimitError{}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// RefusalError means the provider blocked the completion, e.g. by a
// content filter. Retrying the same prompt does not help.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string { return e.Message }

// Is matches any *RefusalError and ErrRefusal.
func (e *RefusalError) Is(target error) bool {
	if target == ErrRefusal {
		return true
	}
	_, ok := target.(*RefusalError)
	return ok
}

func NewRefusalError(message string) *RefusalError {
	return &RefusalError{Message: message}
}

// EmptyResponseError means the provider answered without any content.
type EmptyResponseError struct {
	Message string
}

func (e *EmptyResponseError) Error() string { return e.Message }

// Is matches any *EmptyResponseError and ErrEmptyResponse.
func (e *EmptyResponseError) Is(target error) bool {
	if target == ErrEmptyResponse {
		return true
	}
	_, ok := target.(*EmptyResponseError)
	return ok
}

func NewEmptyResponseError(message string) *EmptyResponseError {
	return &EmptyResponseError{Message: message}
}
