package image

import (
	"context"
	"fmt"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// attach hot-attaches the image to the VM in spec.machineID.
//
// A disk already backed by an image of the same name counts as attached.
// Target, prefix and cache of that disk are not compared.
func (c *Controller) attach(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	if img.Spec.MachineID.IsZero() {
		return nil, fail(ErrConfig, ActionAttach, img, "missing attribute 'machineID'")
	}

	cur, err := c.lookupImage(ctx, ActionAttach, img)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fail(ErrNotFound, ActionAttach, img, "image does not exist")
	}

	vm, err := c.lookupVM(ctx, ActionAttach, img)
	if err != nil {
		return nil, err
	}
	if vm == nil {
		return nil, fail(ErrNotFound, ActionAttach, img, "VM '%s' does not exist", img.Spec.MachineID)
	}

	if disk, ok := vm.DiskByImage(cur.Name); ok {
		c.log.Info("disk_already_attached", "image_name", img.Name, "vm_name", vm.Name, "disk_id", disk.ID)
		return &Result{Image: cur}, nil
	}

	disk := DiskAttachment{
		Image:      cur.Name,
		ImageUName: cur.UName,
		Target:     img.Spec.Target,
		DevPrefix:  img.Spec.Prefix,
		Cache:      img.Spec.Cache,
	}
	if err := c.drv.AttachDisk(ctx, vm.ID, disk); err != nil {
		return nil, failRemote(err, ErrRemote, ActionAttach, img, "failed to attach disk to VM '%s'", vm.Name)
	}
	c.log.Info("disk_attach_requested", "image_name", img.Name, "vm_name", vm.Name, "vm_id", vm.ID)

	if err := c.waitForVM(ctx, vm.ID); err != nil {
		return nil, waitFailure(err, ActionAttach, img.Name, fmt.Sprintf("VM '%s' to settle", vm.Name), c.opts.VMTimeout, true)
	}

	after, err := c.lookupImageByID(ctx, ActionAttach, img, cur.ID)
	if err != nil {
		return nil, markMutated(err)
	}
	if after == nil {
		after = cur
	}

	c.log.Info("disk_attached", "image_name", img.Name, "vm_name", vm.Name, "state", after.State)
	return &Result{Changed: true, Image: after}, nil
}
