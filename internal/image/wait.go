package image

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// errStillPending makes backoff retry the check.
	errStillPending = errors.New("still pending")

	// errWaitTimeout is returned by poll when its own deadline expired.
	errWaitTimeout = errors.New("wait timed out")
)

// checkFunc reports whether the awaited condition holds. An error stops
// the wait immediately.
type checkFunc func(ctx context.Context) (bool, error)

// poll calls check at a fixed interval until it returns true, returns an
// error, timeout expires or ctx is done. Cancellation of ctx is returned
// as is; expiry of timeout is errWaitTimeout.
func (c *Controller) poll(ctx context.Context, target string, timeout time.Duration, check checkFunc) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(backoff.NewConstantBackOff(c.opts.PollInterval), waitCtx)
	op := func() error {
		if c.opts.Observer != nil {
			c.opts.Observer.ObservePoll(target)
		}
		done, err := check(waitCtx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errStillPending
		}
		return nil
	}
	notify := func(_ error, next time.Duration) {
		c.log.Debug("waiting", "target", target, "retry_in", next)
	}

	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if waitCtx.Err() != nil {
		return errWaitTimeout
	}
	return err
}

// waitFailure converts a poll error into an *Error. The remote change has
// been made by the time anything is awaited, so mutated is usually true.
func waitFailure(err error, action, name, what string, timeout time.Duration, mutated bool) *Error {
	e := &Error{Action: action, Image: name, Mutated: mutated}
	switch {
	case errors.Is(err, errWaitTimeout):
		e.Kind = ErrTimedOut
		e.Msg = what + " did not finish within " + timeout.String()
	case errors.Is(err, ErrUnexpectedState):
		e.Kind = ErrUnexpectedState
		e.Err = err
	case errors.Is(err, ErrNotFound):
		e.Kind = ErrNotFound
		e.Err = err
	default:
		e.Kind = remoteKind(err, ErrRemoteUnavailable)
		e.Msg = "failed while waiting for " + what
		e.Err = err
	}
	return e
}

// waitForImage polls the image by id until it is usable. A state outside
// the INIT to READY path fails the wait.
func (c *Controller) waitForImage(ctx context.Context, id int) (*RemoteImage, error) {
	var last *RemoteImage
	err := c.poll(ctx, "image", c.opts.ImageTimeout, func(ctx context.Context) (bool, error) {
		cur, err := c.drv.ImageByID(ctx, id)
		if err != nil {
			return false, err
		}
		if cur == nil {
			return false, errors.Join(ErrNotFound, errors.New("image disappeared while waiting"))
		}
		last = cur
		if cur.IsUsable() {
			return true, nil
		}
		if cur.IsPending() {
			return false, nil
		}
		return false, unexpectedState(cur)
	})
	return last, err
}

// waitForVM polls the VM until it leaves transient states.
func (c *Controller) waitForVM(ctx context.Context, id int) error {
	return c.poll(ctx, "vm", c.opts.VMTimeout, func(ctx context.Context) (bool, error) {
		vm, err := c.drv.VMByID(ctx, id)
		if err != nil {
			return false, err
		}
		if vm == nil {
			return false, errors.Join(ErrNotFound, errors.New("VM disappeared while waiting"))
		}
		return vmSettled(vm)
	})
}

// waitForDeletion polls the image by id until the first lookup that finds
// nothing. A single info call per tick keeps this independent of the pool
// size.
func (c *Controller) waitForDeletion(ctx context.Context, id int) error {
	return c.poll(ctx, "delete", c.opts.DeleteTimeout, func(ctx context.Context) (bool, error) {
		cur, err := c.drv.ImageByID(ctx, id)
		if err != nil {
			return false, err
		}
		if cur == nil {
			return true, nil
		}
		if cur.State == StateError {
			return false, unexpectedState(cur)
		}
		return false, nil
	})
}
