package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConfig means a required attribute is missing or invalid.
	ErrConfig = errors.New("invalid configuration")

	// ErrNotFound means a resource the action needs does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means existing remote or local state differs from the
	// declared state.
	ErrConflict = errors.New("conflict")

	// ErrRemoteUnavailable means the remote API could not be reached.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRemote means the remote API rejected a call.
	ErrRemote = errors.New("remote error")

	// ErrUnexpectedState means a remote resource is in a state the action
	// does not handle.
	ErrUnexpectedState = errors.New("unexpected state")

	// ErrResourceUnavailable means a local resource, such as the file
	// server port, could not be acquired.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrTimedOut means a wait exceeded its timeout.
	ErrTimedOut = errors.New("timed out")

	// ErrUnsupportedOperation means the action cannot be performed with
	// this connection.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Error is returned by every Controller action.
type Error struct {
	// Kind is one of the Err* sentinels, or a context error.
	Kind error

	// Action is the action that failed, e.g. "create".
	Action string

	// Image is the declared image name.
	Image string

	// Msg describes the failure.
	Msg string

	// Mutated is true when the remote change was already made before the
	// failure. Nothing is rolled back.
	Mutated bool

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Action)
	if e.Image != "" {
		fmt.Fprintf(&b, " image '%s'", e.Image)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Mutated {
		b.WriteString(" (remote mutation already applied)")
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrConfig, "ConfigError"},
	{ErrNotFound, "NotFound"},
	{ErrConflict, "Conflict"},
	{ErrRemoteUnavailable, "RemoteUnavailable"},
	{ErrRemote, "RemoteError"},
	{ErrUnexpectedState, "UnexpectedState"},
	{ErrResourceUnavailable, "ResourceUnavailable"},
	{ErrTimedOut, "TimedOut"},
	{ErrUnsupportedOperation, "UnsupportedOperation"},
	{context.Canceled, "Canceled"},
	{context.DeadlineExceeded, "DeadlineExceeded"},
}

// KindName returns a stable name for the kind of err, used as a condition
// reason, journal outcome and metric label. It returns "" for nil.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		for _, k := range kindNames {
			if e.Kind == k.kind {
				return k.name
			}
		}
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "Unknown"
}

// IsMutated reports whether err says the remote change was already made.
func IsMutated(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Mutated
}

// remoteKind classifies an error returned by a Driver, FileServer or
// Fetcher call. Transport failures, local resource failures, conflicts and
// cancellation keep their kind. Anything else becomes fallback.
func remoteKind(err, fallback error) error {
	for _, k := range []error{context.Canceled, context.DeadlineExceeded, ErrRemoteUnavailable, ErrResourceUnavailable, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return fallback
}
