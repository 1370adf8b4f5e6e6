package store

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds every store failure is classified into.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("store unavailable")
	ErrTimeout          = errors.New("store unreachable: timed out")
	ErrNotFound         = errors.New("order not found")
)

// WriteError is returned by failed create, update and remove calls.
type WriteError struct {
	Op   string
	ID   string
	Kind error // one of the Err* kinds above
	Err  error
}

func (e *WriteError) Error() string {
	op := e.Op
	if e.ID != "" {
		op = fmt.Sprintf("%s %s", e.Op, e.ID)
	}
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s: %v", op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", op, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newWriteError(op, id string, err error) error {
	return &WriteError{Op: op, ID: id, Kind: Classify(err), Err: err}
}

// WriteFailure classifies err for a call bounded by ctx: an expired deadline
// always reports ErrTimeout, whatever the driver returned.
func WriteFailure(ctx context.Context, op, id string, err error) error {
	we := &WriteError{Op: op, ID: id, Kind: Classify(err), Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		we.Kind = ErrTimeout
	}
	return we
}

// KindOf returns the error kind err belongs to, or nil if it is none of them.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrPermissionDenied, ErrTimeout, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsRetryable reports whether the failure is a transient connectivity problem.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// subscribeError wraps a subscription failure with its kind.
func subscribeError(what string, err error) error {
	return fmt.Errorf("subscribe %s: %w: %w", what, Classify(err), err)
}

var kindNames = map[error]string{
	ErrPermissionDenied: "permission_denied",
	ErrUnavailable:      "unavailable",
	ErrTimeout:          "timeout",
	ErrNotFound:         "not_found",
}

// KindName is the wire name of err's kind, or "" when it has none.
func KindName(err error) string {
	return kindNames[KindOf(err)]
}

// KindByName maps a wire name back to its kind. Unknown names are unavailable.
func KindByName(name string) error {
	for kind, n := range kindNames {
		if n == name {
			return kind
		}
	}
	return ErrUnavailable
}
