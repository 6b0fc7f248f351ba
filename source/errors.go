package source

import (
	"errors"
	"fmt"
)

// Fetch failure kinds.
const (
	KindTimeout     = "timeout"
	KindConnection  = "connection"
	KindForbidden   = "forbidden"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindServer      = "server"
)

// FetchError is a classified failure fetching a remote catalog page.
type FetchError struct {
	Kind   string
	Status int
	Err    error
}

func (e FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Errorf("%s (http %d): %w", e.Kind, e.Status, e.Err).Error()
	}
	return fmt.Errorf("%s: %w", e.Kind, e.Err).Error()
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
func (e FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fe FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return "other"
}

func retryable(err error) bool {
	var fe FetchError
	return errors.As(err, &fe) && fe.Retryable()
}
