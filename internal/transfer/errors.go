package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"google.golang.org/api/googleapi"
)

// Kind separates failures worth retrying from those that must propagate immediately.
type Kind int

const (
	KindFatal Kind = iota
	KindRetriable
)

func (k Kind) String() string {
	if k == KindRetriable {
		return "retriable"
	}
	return "fatal"
}

// StatusError reports an HTTP response the session did not expect.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Error is the terminal failure of an upload.
type Error struct {
	Kind      Kind
	Retries   int
	Exhausted bool
	Err       error
}

func (e *Error) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("upload aborted after %d retries: %v", e.Retries, e.Err)
	}
	return fmt.Sprintf("upload failed (%s, %d retries): %v", e.Kind, e.Retries, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// retriableStatus lists the HTTP-layer codes treated as transient.
var retriableStatus = map[int]struct{}{
	500: {},
	502: {},
	503: {},
	504: {},
}

// Classify decides whether err is transient. Cancellation is always fatal.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusKind(statusErr.Code)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return statusKind(apiErr.Code)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return KindRetriable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindRetriable
	}
	return KindFatal
}

// IsRetriable reports whether Classify(err) is KindRetriable.
func IsRetriable(err error) bool {
	return Classify(err) == KindRetriable
}

func statusKind(code int) Kind {
	if _, ok := retriableStatus[code]; ok {
		return KindRetriable
	}
	return KindFatal
}
