package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	// KindTransient failures are network-level and likely to succeed on retry:
	// connection reset, connection aborted, timeout.
	KindTransient ErrorKind = iota + 1

	// KindPermanent failures are not worth retrying: protocol errors, auth
	// failures, unexpected status codes, malformed payloads.
	KindPermanent
)

// String returns "transient" or "permanent".
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

var (
	// ErrUnexpectedStatus is wrapped by [*StatusError] for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrMalformedPayload is returned when a 2xx body is not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrFetchPanic marks a fetch aborted by a recovered panic.
	ErrFetchPanic = errors.New("fetch panic")
)

// StatusError reports a non-2xx HTTP response from the upstream API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.Code, http.StatusText(e.Code))
}

// Is makes errors.Is(err, ErrUnexpectedStatus) match any StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Timeout reports whether the status code signals an upstream timeout.
func (e *StatusError) Timeout() bool {
	return e.Code == http.StatusRequestTimeout || e.Code == http.StatusGatewayTimeout
}

// FetchError is the failure half of an [Outcome]. It is the only error value
// that leaves a [Fetcher].
type FetchError struct {
	// Kind is the classification of the last attempt's error.
	Kind ErrorKind

	// Attempts is the number of HTTP attempts made, including the last one.
	Attempts int

	// Err is the last attempt's error.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s failure after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
//
// Transient errors are connection resets, aborted connections (including a
// server closing the connection before a full response), timeouts (including
// the per-attempt deadline) and HTTP 408/504. Cancellation of the caller's
// context is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Timeout()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// classify maps an error to its [ErrorKind].
func classify(err error) ErrorKind {
	if IsTransient(err) {
		return KindTransient
	}
	return KindPermanent
}
