package image

import (
	"context"
	"time"
)

// Driver is the connection to one OpenNebula endpoint.
//
// In production, this is satisfied by *one.Client.
// In tests, this is satisfied by mock implementations.
//
// Lookups return nil and no error when nothing matches. More than one
// image with the same name is reported as ErrConflict.
type Driver interface {
	// URL identifies the connection, e.g. "opennebula:http://one:2633/RPC2"
	URL() string

	// Version returns the OpenNebula version string
	Version(ctx context.Context) (string, error)

	// ImageByName looks up an image by name
	ImageByName(ctx context.Context, name string) (*RemoteImage, error)

	// ImageByID looks up an image by id
	ImageByID(ctx context.Context, id int) (*RemoteImage, error)

	// VMByName looks up a VM by name
	VMByName(ctx context.Context, name string) (*RemoteVM, error)

	// VMByID looks up a VM by id
	VMByID(ctx context.Context, id int) (*RemoteVM, error)

	// AllocateImage registers a new image in a datastore and returns its id
	AllocateImage(ctx context.Context, tpl ImageTemplate, datastoreID int) (int, error)

	// DeleteImage deletes an image
	DeleteImage(ctx context.Context, id int) error

	// ChmodImage changes image permissions
	ChmodImage(ctx context.Context, id int, perms Permissions) error

	// SetPersistent marks an image persistent or not
	SetPersistent(ctx context.Context, id int, persistent bool) error

	// AttachDisk hot-attaches a disk to a VM
	AttachDisk(ctx context.Context, vmID int, disk DiskAttachment) error

	// SaveDisk saves a VM disk as a new image and returns the image id.
	// caps selects between disk save-as and the legacy call.
	SaveDisk(ctx context.Context, vmID, diskID int, name string, caps Capabilities) (int, error)
}

// FileServer serves a local file over HTTP for the remote side to fetch.
type FileServer interface {
	// URLFor returns the URL path will be served at, without serving it
	URLFor(path string, port int) (string, error)

	// Serve starts serving path. Bind failures wrap ErrResourceUnavailable.
	Serve(ctx context.Context, path string, port int) (ServedFile, error)
}

// ServedFile is a running file server. Close is safe to call more than once.
type ServedFile interface {
	URL() string
	Close() error
}

// Fetcher downloads a URL to a local path and returns the bytes written.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

// Recorder stores a record of every action.
type Recorder interface {
	Record(ctx context.Context, rec ActionRecord) error
}

// Observer receives action and poll measurements.
type Observer interface {
	ObserveAction(action, outcome string, d time.Duration)
	ObservePoll(target string)
}
