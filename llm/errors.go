package llm

import "errors"

// classified attaches a retry disposition to an error. Callers inspect
// it through IsTransient and IsFatal rather than the type itself.
type classified struct {
	err       error
	retryable bool
}

func (e *classified) Error() string { return e.err.Error() }
func (e *classified) Unwrap() error { return e.err }

// NewTransientError marks err as worth retrying, for rate limits,
// network failures, and server-side errors.
func NewTransientError(err error) error {
	return &classified{err: err, retryable: true}
}

// NewFatalError marks err as permanent. Retrying or falling back to
// another endpoint will not help, typically auth or request errors.
func NewFatalError(err error) error {
	return &classified{err: err}
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	var c *classified
	return errors.As(err, &c) && c.retryable
}

// IsFatal reports whether err was classified as permanent.
func IsFatal(err error) bool {
	var c *classified
	return errors.As(err, &c) && !c.retryable
}
