package image

import (
	"context"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// create allocates the image, then waits for INIT or LOCKED images to
// become READY. Usable images are left alone and any other state fails.
func (c *Controller) create(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	res, err := c.allocateImage(ctx, ActionCreate, img)
	if err != nil {
		return nil, err
	}
	cur := res.Image

	switch {
	case cur.IsPending():
		c.log.Info("waiting_for_image", "image_name", img.Name, "image_id", cur.ID, "state", cur.State)
		ready, err := c.waitForImage(ctx, cur.ID)
		if err != nil {
			return nil, waitFailure(err, ActionCreate, img.Name, "image to become READY", c.opts.ImageTimeout, res.Changed)
		}
		c.log.Info("image_ready", "image_name", img.Name, "image_id", ready.ID, "state", ready.State)
		return &Result{Changed: true, Image: ready}, nil

	case cur.IsUsable():
		c.log.Info("image_up_to_date", "image_name", img.Name, "image_id", cur.ID, "state", cur.State)
		return res, nil

	default:
		return nil, &Error{
			Kind:    ErrUnexpectedState,
			Action:  ActionCreate,
			Image:   img.Name,
			Err:     unexpectedState(cur),
			Mutated: res.Changed,
		}
	}
}
