package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoComments is returned by Generate for a group without any comments.
var ErrNoComments = errors.New("no usable comments")

type ErrorKind int

const (
	Unknown ErrorKind = iota
	Unavailable
	RateLimited
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case RateLimited:
		return "rate limited"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CompletionError is a failed summarizer call tagged with what went wrong.
type CompletionError struct {
	Kind ErrorKind
	Err  error
}

func (e *CompletionError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

func NewCompletionError(kind ErrorKind, err error) *CompletionError {
	return &CompletionError{Kind: kind, Err: err}
}

// KindOf reports the kind of a summarizer failure. Errors that were never
// tagged are Timeout when a deadline expired and Unknown otherwise.
func KindOf(err error) ErrorKind {
	if err == nil {
		return Unknown
	}

	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// KindFromStatus maps an HTTP status from a summarizer backend to an ErrorKind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return Timeout
	case status >= 500:
		return Unavailable
	default:
		return Unknown
	}
}
