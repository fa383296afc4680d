package image

import (
	"context"
	"fmt"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// lookupImage finds the declared image by name. It never mutates.
func (c *Controller) lookupImage(ctx context.Context, action string, img *v1alpha1.Image) (*RemoteImage, error) {
	cur, err := c.drv.ImageByName(ctx, img.Name)
	if err != nil {
		return nil, failRemote(err, ErrRemoteUnavailable, action, img, "failed to look up image")
	}
	return cur, nil
}

// lookupImageByID looks up an image by id.
func (c *Controller) lookupImageByID(ctx context.Context, action string, img *v1alpha1.Image, id int) (*RemoteImage, error) {
	cur, err := c.drv.ImageByID(ctx, id)
	if err != nil {
		return nil, failRemote(err, ErrRemoteUnavailable, action, img, "failed to look up image %d", id)
	}
	return cur, nil
}

// lookupVM looks up the VM referenced by spec.machineID, by id when it is
// numeric and by name otherwise.
func (c *Controller) lookupVM(ctx context.Context, action string, img *v1alpha1.Image) (*RemoteVM, error) {
	ref := img.Spec.MachineID

	var (
		vm  *RemoteVM
		err error
	)
	if id, ok := ref.ID(); ok {
		vm, err = c.drv.VMByID(ctx, id)
	} else {
		vm, err = c.drv.VMByName(ctx, ref.String())
	}
	if err != nil {
		return nil, failRemote(err, ErrRemoteUnavailable, action, img, "failed to look up VM '%s'", ref)
	}
	return vm, nil
}

// unexpectedState reports an image state the action does not handle.
func unexpectedState(cur *RemoteImage) error {
	return fmt.Errorf("%w: image '%s' is in unexpected state '%s'", ErrUnexpectedState, cur.Name, cur.State)
}
