package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrSessionUnavailable  = errors.New("browser session unavailable")
	ErrCompanyNotFound     = errors.New("company not found")
	ErrBlocked             = errors.New("blocked by platform")
	ErrNoMatchersSucceeded = errors.New("no review matcher succeeded")
	ErrMalformedFragment   = errors.New("malformed review fragment")
	ErrOutOfRange          = errors.New("review date outside requested range")
)

// ConfigurationError reports an invalid argument detected before any browsing
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// BlockedError carries the blocking signature that fired
type BlockedError struct {
	Signature string
	URL       string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by platform (signature %q) at %s", e.Signature, e.URL)
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// ErrorLabel maps an error to a short label for metrics and result manifests
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrCompanyNotFound):
		return "company_not_found"
	case errors.Is(err, ErrNoMatchersSucceeded):
		return "no_matchers"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrSessionUnavailable):
		return "session_unavailable"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}
