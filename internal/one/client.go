package one

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OpenNebula/one/src/oca/go/src/goca"

	"github.com/jbweber/oneimage/internal/image"
	"github.com/jbweber/oneimage/internal/naming"
)

// Config holds connection settings.
type Config struct {
	// Endpoint is the XML-RPC URL, e.g. "http://one:2633/RPC2"
	Endpoint string

	// User and Password form the session token "user:password"
	User     string
	Password string
}

// Client is an OpenNebula connection. It satisfies image.Driver.
type Client struct {
	endpoint string
	one      api
}

// NewClient creates a client for conf. The connection is not verified
// until the first call.
func NewClient(conf Config) *Client {
	oneConf := goca.OneConfig{
		Token:    conf.User + ":" + conf.Password,
		Endpoint: conf.Endpoint,
	}
	return newClientWithAPI(conf.Endpoint, newGocaAPI(goca.NewDefaultClient(oneConf)))
}

// newClientWithAPI creates a client with an injected api.
// This allows for testing without an OpenNebula server.
func newClientWithAPI(endpoint string, one api) *Client {
	return &Client{endpoint: endpoint, one: one}
}

// URL returns the driver URL identifying this connection.
func (c *Client) URL() string {
	return naming.DriverURL(c.endpoint)
}

// Version returns the OpenNebula version, e.g. "6.8.0".
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := c.one.version(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// ImageByName returns the image named name, or nil if there is none.
// OpenNebula has no name filter for images, so this reads the pool once.
func (c *Client) ImageByName(ctx context.Context, name string) (*image.RemoteImage, error) {
	pool, err := c.one.imagePool(ctx)
	if err != nil {
		return nil, err
	}

	var found *image.RemoteImage
	matches := 0
	for i := range pool.Images {
		if pool.Images[i].Name != name {
			continue
		}
		matches++
		found = remoteImage(&pool.Images[i])
	}
	if matches > 1 {
		return nil, fmt.Errorf("%w: %d images are named '%s'", image.ErrConflict, matches, name)
	}
	return found, nil
}

// ImageByID returns the image with id, or nil if there is none.
func (c *Client) ImageByID(ctx context.Context, id int) (*image.RemoteImage, error) {
	img, err := c.one.imageInfo(ctx, id)
	if err != nil {
		if errors.Is(err, errNoExists) {
			return nil, nil
		}
		return nil, err
	}
	return remoteImage(img), nil
}

// VMByName returns the VM named name, or nil if there is none.
func (c *Client) VMByName(ctx context.Context, name string) (*image.RemoteVM, error) {
	pool, err := c.one.vmPool(ctx)
	if err != nil {
		return nil, err
	}

	id := -1
	for _, vm := range pool.VMs {
		if vm.Name != name {
			continue
		}
		if id >= 0 {
			return nil, fmt.Errorf("%w: more than one VM is named '%s'", image.ErrConflict, name)
		}
		id = vm.ID
	}
	if id < 0 {
		return nil, nil
	}
	// Pool entries carry a reduced template, so fetch the full VM for its disks.
	return c.VMByID(ctx, id)
}

// VMByID returns the VM with id, or nil if there is none.
func (c *Client) VMByID(ctx context.Context, id int) (*image.RemoteVM, error) {
	vm, err := c.one.vmInfo(ctx, id)
	if err != nil {
		if errors.Is(err, errNoExists) {
			return nil, nil
		}
		return nil, err
	}
	return remoteVM(vm), nil
}

// AllocateImage registers tpl in datastoreID and returns the new image id.
func (c *Client) AllocateImage(ctx context.Context, tpl image.ImageTemplate, datastoreID int) (int, error) {
	body, err := imageTemplate(tpl)
	if err != nil {
		return 0, fmt.Errorf("failed to build template for image '%s': %w", tpl.Name, err)
	}
	return c.one.allocateImage(ctx, body, datastoreID)
}

// DeleteImage deletes the image with id.
func (c *Client) DeleteImage(ctx context.Context, id int) error {
	return c.one.deleteImage(ctx, id)
}

// ChmodImage applies perms to the image with id.
func (c *Client) ChmodImage(ctx context.Context, id int, p image.Permissions) error {
	return c.one.chmodImage(ctx, id, permissions(p))
}

// SetPersistent marks the image with id persistent or not.
func (c *Client) SetPersistent(ctx context.Context, id int, persistent bool) error {
	return c.one.persistentImage(ctx, id, persistent)
}

// AttachDisk hot-attaches disk to the VM with vmID.
func (c *Client) AttachDisk(ctx context.Context, vmID int, disk image.DiskAttachment) error {
	body, err := diskTemplate(disk)
	if err != nil {
		return fmt.Errorf("failed to build disk template for image '%s': %w", disk.Image, err)
	}
	return c.one.attachDisk(ctx, vmID, body)
}

// SaveDisk saves a VM disk as a new image named name and returns its id.
// Servers without disk save-as get the legacy hot save-disk call.
func (c *Client) SaveDisk(ctx context.Context, vmID, diskID int, name string, caps image.Capabilities) (int, error) {
	if caps.DiskSaveAs {
		return c.one.diskSaveas(ctx, vmID, diskID, name)
	}
	return c.one.saveDisk(ctx, vmID, diskID, name)
}
