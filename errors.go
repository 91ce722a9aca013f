package arxiv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that a paper has no upstream resource or no stored artifact.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable reports a transient upstream failure (network, rate limit, 5xx).
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrConversion reports that a fetched document could not be converted.
	ErrConversion = errors.New("conversion failed")

	// ErrStorage reports a read or write failure on the artifact store.
	ErrStorage = errors.New("storage error")

	// ErrInvalidID reports an identifier that cannot name a stored artifact.
	ErrInvalidID = errors.New("invalid paper id")

	// ErrQueueFull reports that the conversion pool cannot accept more work.
	ErrQueueFull = errors.New("conversion queue full")
)

// Error ties a failure kind to the paper it happened for.
// It unwraps to both Kind and Err, so errors.Is matches either.
type Error struct {
	Kind    error
	PaperID string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.PaperID != "" {
		msg = e.PaperID + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, id string, err error) error {
	return &Error{Kind: kind, PaperID: id, Err: err}
}

func errorf(kind error, id, format string, args ...any) error {
	return &Error{Kind: kind, PaperID: id, Err: fmt.Errorf(format, args...)}
}
