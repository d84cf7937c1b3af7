package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Fetch error kinds used for logs and metric labels.
const (
	kindTimeout     = "timeout"
	kindConnection  = "connection"
	kindForbidden   = "forbidden"
	kindNotFound    = "not_found"
	kindRateLimited = "rate_limited"
	kindOther       = "other"
)

// FetchError wraps a page fetch failure with its classified kind.
type FetchError struct {
	Kind string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error and HTTP status onto a FetchError.
func classifyError(err error, statusCode int) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: kindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: kindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &FetchError{Kind: kindConnection, Err: err}
	}

	switch statusCode {
	case http.StatusForbidden:
		return &FetchError{Kind: kindForbidden, Err: err}
	case http.StatusNotFound:
		return &FetchError{Kind: kindNotFound, Err: err}
	case http.StatusTooManyRequests:
		return &FetchError{Kind: kindRateLimited, Err: err}
	}

	return &FetchError{Kind: kindOther, Err: err}
}

// fetchErrorKind extracts the classification label from an error.
func fetchErrorKind(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return kindOther
}
