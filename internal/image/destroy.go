package image

import (
	"context"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// destroy deletes the image and polls its id until the first lookup that
// no longer finds it. An absent image is a no-op.
func (c *Controller) destroy(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	cur, err := c.lookupImage(ctx, ActionDestroy, img)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		c.log.Info("image_absent", "image_name", img.Name)
		return &Result{}, nil
	}

	if err := c.drv.DeleteImage(ctx, cur.ID); err != nil {
		return nil, failRemote(err, ErrRemote, ActionDestroy, img, "failed to delete image %d", cur.ID)
	}
	c.log.Info("image_delete_requested", "image_name", img.Name, "image_id", cur.ID)

	if err := c.waitForDeletion(ctx, cur.ID); err != nil {
		return nil, waitFailure(err, ActionDestroy, img.Name, "deletion", c.opts.DeleteTimeout, true)
	}

	c.log.Info("image_deleted", "image_name", img.Name, "image_id", cur.ID)
	return &Result{Changed: true}, nil
}
