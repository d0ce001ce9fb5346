package llm

import (
	"context"
	"errors"
)

// ErrNoContent indicates the model returned a response with no usable text.
var ErrNoContent = errors.New("llm: no content in model response")

// Client is the minimal surface the rest of the system needs from a
// language-model provider. Cross-cutting concerns (rate limiting, retries,
// logging) are applied via Middleware, not inside implementations.
type Client interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

// PermanentError marks a provider error that will not resolve with retries
// (bad credentials, invalid request). Retry middleware surfaces it as-is.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
