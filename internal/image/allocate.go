package image

import (
	"context"
	"errors"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

func (c *Controller) allocate(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.allocateImage(ctx, ActionAllocate, img)
}

// allocateImage creates an empty image unless one with the name exists.
// Required attributes are checked before anything remote is touched.
func (c *Controller) allocateImage(ctx context.Context, action string, img *v1alpha1.Image) (*Result, error) {
	if img.Spec.Size <= 0 {
		return nil, fail(ErrConfig, action, img, "'size' must be specified")
	}
	if img.Spec.DatastoreID == nil {
		return nil, fail(ErrConfig, action, img, "'datastoreID' must be specified")
	}
	perms, err := parseSpecMode(action, img)
	if err != nil {
		return nil, err
	}

	cur, err := c.lookupImage(ctx, action, img)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		c.log.Info("image_exists", "image_name", img.Name, "image_id", cur.ID, "state", cur.State)
		return &Result{Image: cur}, nil
	}

	tpl := ImageTemplate{
		Name:       img.Name,
		Type:       img.GetType(),
		Size:       img.Spec.Size,
		FSType:     img.GetFSType(),
		Driver:     img.GetDriver(),
		DevPrefix:  img.GetPrefix(),
		Persistent: img.Spec.Persistent,
	}
	dsID := *img.Spec.DatastoreID
	id, err := c.drv.AllocateImage(ctx, tpl, dsID)
	if err != nil {
		return nil, failRemote(err, ErrRemote, action, img, "failed to allocate in datastore %d", dsID)
	}

	if perms != nil {
		if err := c.drv.ChmodImage(ctx, id, *perms); err != nil {
			return nil, markMutated(failRemote(err, ErrRemote, action, img, "failed to set mode %s on image %d", img.Spec.Mode, id))
		}
	}

	cur, err = c.lookupImageByID(ctx, action, img, id)
	if err != nil {
		return nil, markMutated(err)
	}
	if cur == nil {
		return nil, markMutated(fail(ErrNotFound, action, img, "image %d not found after allocation", id))
	}

	c.log.Info("image_allocated",
		"image_name", img.Name,
		"image_id", cur.ID,
		"datastore_id", dsID,
		"state", cur.State,
	)
	return &Result{Changed: true, Image: cur}, nil
}

// parseSpecMode parses spec.mode, returning nil when it is unset.
func parseSpecMode(action string, img *v1alpha1.Image) (*Permissions, error) {
	if img.Spec.Mode == "" {
		return nil, nil
	}
	perms, err := ParseMode(img.Spec.Mode)
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Action: action, Image: img.Name, Err: err}
	}
	return &perms, nil
}

// markMutated flags err as having happened after a remote change.
func markMutated(err error) error {
	var e *Error
	if errors.As(err, &e) {
		e.Mutated = true
	}
	return err
}
