package one

import (
	"context"
	stderrors "errors"
	"fmt"

	errs "github.com/OpenNebula/one/src/oca/go/src/goca/errors"

	"github.com/jbweber/oneimage/internal/image"
)

// errNoExists marks a call on an object id that does not exist.
var errNoExists = stderrors.New("object does not exist")

// rpcError is a failed XML-RPC call. kind classifies it for the controller.
type rpcError struct {
	method string
	kind   error
	err    error
}

func (e *rpcError) Error() string {
	return e.method + ": " + e.err.Error()
}

func (e *rpcError) Unwrap() []error {
	return []error{e.kind, e.err}
}

// classify wraps an error returned by goca and passes nil through. Context
// errors keep no remote kind so callers see the cancellation itself.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", method, err)
	}

	var respErr *errs.ResponseError
	if stderrors.As(err, &respErr) {
		if respErr.Code == errs.OneNoExistsError {
			return &rpcError{method: method, kind: errNoExists, err: err}
		}
		return &rpcError{method: method, kind: image.ErrRemote, err: err}
	}
	return &rpcError{method: method, kind: image.ErrRemoteUnavailable, err: err}
}
