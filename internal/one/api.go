package one

import (
	"context"

	"github.com/OpenNebula/one/src/oca/go/src/goca"
	imgschema "github.com/OpenNebula/one/src/oca/go/src/goca/schemas/image"
	"github.com/OpenNebula/one/src/oca/go/src/goca/schemas/shared"
	vmschema "github.com/OpenNebula/one/src/oca/go/src/goca/schemas/vm"
)

// Pool filters: -2 lists every object the user can see, -1/-1 is the
// full id range, -1 for VMs means any state except DONE.
const (
	poolAll    = -2
	poolRange  = -1
	vmAnyState = -1

	// noSnapshot saves the current disk contents rather than a disk snapshot.
	noSnapshot = -1
)

// api is the part of goca used by Client. Every method returns errors
// already passed through classify.
//
// In production, this is satisfied by gocaAPI.
// In tests, this is satisfied by a fake built from canned documents.
type api interface {
	version(ctx context.Context) (string, error)

	imagePool(ctx context.Context) (*imgschema.Pool, error)
	imageInfo(ctx context.Context, id int) (*imgschema.Image, error)
	allocateImage(ctx context.Context, tpl string, datastoreID int) (int, error)
	deleteImage(ctx context.Context, id int) error
	chmodImage(ctx context.Context, id int, perms shared.Permissions) error
	persistentImage(ctx context.Context, id int, persistent bool) error

	vmPool(ctx context.Context) (*vmschema.Pool, error)
	vmInfo(ctx context.Context, id int) (*vmschema.VM, error)
	attachDisk(ctx context.Context, vmID int, tpl string) error
	diskSaveas(ctx context.Context, vmID, diskID int, name string) (int, error)
	saveDisk(ctx context.Context, vmID, diskID int, name string) (int, error)
}

// gocaAPI calls OpenNebula through goca's controllers. Only the legacy
// save-disk call, which goca no longer wraps, goes through the raw client.
type gocaAPI struct {
	client *goca.Client
	ctrl   *goca.Controller
}

func newGocaAPI(client *goca.Client) gocaAPI {
	return gocaAPI{client: client, ctrl: goca.NewController(client)}
}

func (g gocaAPI) version(ctx context.Context) (string, error) {
	v, err := g.ctrl.SystemVersionContext(ctx)
	return v, classify("one.system.version", err)
}

func (g gocaAPI) imagePool(ctx context.Context) (*imgschema.Pool, error) {
	pool, err := g.ctrl.Images().InfoContext(ctx, poolAll, poolRange, poolRange)
	return pool, classify("one.imagepool.info", err)
}

func (g gocaAPI) imageInfo(ctx context.Context, id int) (*imgschema.Image, error) {
	img, err := g.ctrl.Image(id).InfoContext(ctx, false)
	return img, classify("one.image.info", err)
}

func (g gocaAPI) allocateImage(ctx context.Context, tpl string, datastoreID int) (int, error) {
	id, err := g.ctrl.Images().CreateContext(ctx, tpl, uint(datastoreID))
	return id, classify("one.image.allocate", err)
}

func (g gocaAPI) deleteImage(ctx context.Context, id int) error {
	return classify("one.image.delete", g.ctrl.Image(id).DeleteContext(ctx))
}

func (g gocaAPI) chmodImage(ctx context.Context, id int, perms shared.Permissions) error {
	return classify("one.image.chmod", g.ctrl.Image(id).ChmodContext(ctx, perms))
}

func (g gocaAPI) persistentImage(ctx context.Context, id int, persistent bool) error {
	return classify("one.image.persistent", g.ctrl.Image(id).PersistentContext(ctx, persistent))
}

func (g gocaAPI) vmPool(ctx context.Context) (*vmschema.Pool, error) {
	pool, err := g.ctrl.VMs().InfoContext(ctx, poolAll, poolRange, poolRange, vmAnyState)
	return pool, classify("one.vmpool.info", err)
}

func (g gocaAPI) vmInfo(ctx context.Context, id int) (*vmschema.VM, error) {
	vm, err := g.ctrl.VM(id).InfoContext(ctx, false)
	return vm, classify("one.vm.info", err)
}

func (g gocaAPI) attachDisk(ctx context.Context, vmID int, tpl string) error {
	return classify("one.vm.attach", g.ctrl.VM(vmID).DiskAttachContext(ctx, tpl))
}

func (g gocaAPI) diskSaveas(ctx context.Context, vmID, diskID int, name string) (int, error) {
	id, err := g.ctrl.VM(vmID).Disk(diskID).SaveasContext(ctx, name, "", noSnapshot)
	return id, classify("one.vm.disksaveas", err)
}

// saveDisk is the hot save-disk call of servers older than 4.14.
func (g gocaAPI) saveDisk(ctx context.Context, vmID, diskID int, name string) (int, error) {
	resp, err := g.client.CallContext(ctx, "one.vm.savedisk", vmID, diskID, name, "", true)
	if err != nil {
		return 0, classify("one.vm.savedisk", err)
	}
	return resp.BodyInt(), nil
}
