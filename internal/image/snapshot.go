package image

import (
	"context"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// snapshot saves a VM disk as a new image named after img. Snapshot names
// are unique, so an existing image with the name is a conflict.
func (c *Controller) snapshot(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	if img.Spec.MachineID.IsZero() {
		return nil, fail(ErrConfig, ActionSnapshot, img, "missing attribute 'machineID'")
	}
	if img.Spec.DiskID.IsZero() {
		return nil, fail(ErrConfig, ActionSnapshot, img, "missing attribute 'diskID'")
	}
	perms, err := parseSpecMode(ActionSnapshot, img)
	if err != nil {
		return nil, err
	}

	existing, err := c.lookupImage(ctx, ActionSnapshot, img)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fail(ErrConflict, ActionSnapshot, img, "snapshot already exists (ID: %d)", existing.ID)
	}

	vm, err := c.lookupVM(ctx, ActionSnapshot, img)
	if err != nil {
		return nil, err
	}
	if vm == nil {
		return nil, fail(ErrNotFound, ActionSnapshot, img, "VM '%s' does not exist", img.Spec.MachineID)
	}

	diskID, ok := img.Spec.DiskID.ID()
	if !ok {
		disk, found := vm.DiskByImage(img.Spec.DiskID.String())
		if !found {
			return nil, fail(ErrNotFound, ActionSnapshot, img, "no disk '%s' found on VM '%s'", img.Spec.DiskID, vm.Name)
		}
		diskID = disk.ID
	}

	id, err := c.drv.SaveDisk(ctx, vm.ID, diskID, img.Name, c.caps)
	if err != nil {
		return nil, failRemote(err, ErrRemote, ActionSnapshot, img, "failed to save disk %d of VM '%s'", diskID, vm.Name)
	}
	c.log.Info("snapshot_requested",
		"image_name", img.Name,
		"image_id", id,
		"vm_name", vm.Name,
		"disk_id", diskID,
		"disk_save_as", c.caps.DiskSaveAs,
	)

	ready, err := c.waitForImage(ctx, id)
	if err != nil {
		return nil, waitFailure(err, ActionSnapshot, img.Name, "snapshot to become READY", c.opts.ImageTimeout, true)
	}

	if perms != nil {
		if err := c.drv.ChmodImage(ctx, id, *perms); err != nil {
			return nil, markMutated(failRemote(err, ErrRemote, ActionSnapshot, img, "failed to set mode %s on image %d", img.Spec.Mode, id))
		}
	}
	if img.Spec.Persistent {
		if err := c.drv.SetPersistent(ctx, id, true); err != nil {
			return nil, markMutated(failRemote(err, ErrRemote, ActionSnapshot, img, "failed to make image %d persistent", id))
		}
		c.log.Info("image_made_persistent", "image_name", img.Name, "image_id", id)
	}

	if perms != nil || img.Spec.Persistent {
		after, err := c.lookupImageByID(ctx, ActionSnapshot, img, id)
		if err != nil {
			return nil, markMutated(err)
		}
		if after != nil {
			ready = after
		}
	}

	c.log.Info("snapshot_created", "image_name", img.Name, "image_id", ready.ID, "state", ready.State)
	return &Result{Changed: true, Image: ready}, nil
}
