package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/status"
)

// Default wait settings.
const (
	DefaultPollInterval  = time.Second
	DefaultImageTimeout  = 10 * time.Minute
	DefaultVMTimeout     = 5 * time.Minute
	DefaultDeleteTimeout = 5 * time.Minute
)

// Options configures a Controller. Zero values take defaults. FileServer
// is needed for local-file uploads and Fetcher for downloads; Recorder and
// Observer are optional.
type Options struct {
	Logger *slog.Logger

	PollInterval  time.Duration
	ImageTimeout  time.Duration
	VMTimeout     time.Duration
	DeleteTimeout time.Duration

	// DownloadOverride takes precedence over spec.downloadURL for downloads.
	DownloadOverride string

	// CacheDir is where downloads land when spec.imageFile is empty.
	CacheDir string

	// HTTPPort is the file server port when spec.httpPort is zero.
	HTTPPort int

	FileServer FileServer
	Fetcher    Fetcher
	Recorder   Recorder
	Observer   Observer
}

// Controller runs image actions against a single connection.
type Controller struct {
	drv  Driver
	caps Capabilities
	log  *slog.Logger
	opts Options
}

// NewController creates a Controller for drv. The server version is
// queried once here to resolve Capabilities.
func NewController(ctx context.Context, drv Driver, opts Options) (*Controller, error) {
	if drv == nil {
		return nil, &Error{Kind: ErrConfig, Action: "connect", Msg: "no driver configured"}
	}

	raw, err := drv.Version(ctx)
	if err != nil {
		return nil, &Error{Kind: remoteKind(err, ErrRemoteUnavailable), Action: "connect", Msg: drv.URL(), Err: err}
	}
	caps, err := ResolveCapabilities(raw)
	if err != nil {
		return nil, &Error{Kind: ErrUnsupportedOperation, Action: "connect", Msg: drv.URL(), Err: err}
	}

	return newControllerWithCaps(drv, caps, opts), nil
}

// newControllerWithCaps creates a Controller with already resolved
// capabilities. This allows tests to skip the version query.
func newControllerWithCaps(drv Driver, caps Capabilities, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = DefaultImageTimeout
	}
	if opts.VMTimeout <= 0 {
		opts.VMTimeout = DefaultVMTimeout
	}
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = DefaultDeleteTimeout
	}
	if opts.CacheDir == "" {
		opts.CacheDir = os.TempDir()
	}

	return &Controller{
		drv:  drv,
		caps: caps,
		log:  opts.Logger.With("driver_url", drv.URL()),
		opts: opts,
	}
}

// Capabilities returns the capabilities resolved for this connection.
func (c *Controller) Capabilities() Capabilities {
	return c.caps
}

// DriverURL returns the identity of the controller's connection.
func (c *Controller) DriverURL() string {
	return c.drv.URL()
}

// Allocate creates an empty image unless one with the name exists.
func (c *Controller) Allocate(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionAllocate, img, c.allocate)
}

// Create allocates the image and waits until it is READY.
func (c *Controller) Create(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionCreate, img, c.create)
}

// Destroy deletes the image and waits until it is gone.
func (c *Controller) Destroy(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionDestroy, img, c.destroy)
}

// Attach attaches the image to spec.machineID.
func (c *Controller) Attach(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionAttach, img, c.attach)
}

// Snapshot saves spec.diskID of spec.machineID as a new image named after img.
func (c *Controller) Snapshot(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionSnapshot, img, c.snapshot)
}

// Upload registers the image from spec.imageFile or spec.downloadURL.
func (c *Controller) Upload(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionUpload, img, c.upload)
}

// Download fetches the image's backing file to local storage.
func (c *Controller) Download(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	return c.run(ctx, ActionDownload, img, c.download)
}

// Run dispatches an action by name.
func (c *Controller) Run(ctx context.Context, action string, img *v1alpha1.Image) (*Result, error) {
	switch action {
	case ActionAllocate:
		return c.Allocate(ctx, img)
	case ActionCreate:
		return c.Create(ctx, img)
	case ActionDestroy:
		return c.Destroy(ctx, img)
	case ActionAttach:
		return c.Attach(ctx, img)
	case ActionSnapshot:
		return c.Snapshot(ctx, img)
	case ActionUpload:
		return c.Upload(ctx, img)
	case ActionDownload:
		return c.Download(ctx, img)
	default:
		name := ""
		if img != nil {
			name = img.Name
		}
		return nil, &Error{Kind: ErrUnsupportedOperation, Action: action, Image: name, Msg: "unknown action"}
	}
}

// Get looks up the image and refreshes its status without running an action.
// The last action and changed flag are kept. A missing image is not an
// error; the status phase becomes Absent.
func (c *Controller) Get(ctx context.Context, img *v1alpha1.Image) (*RemoteImage, error) {
	if img == nil {
		return nil, &Error{Kind: ErrConfig, Action: "get", Msg: "no image given"}
	}
	img.Normalize()
	if img.Name == "" {
		return nil, &Error{Kind: ErrConfig, Action: "get", Msg: "metadata.name is required"}
	}
	if err := c.checkDriver("get", img); err != nil {
		return nil, err
	}

	cur, err := c.lookupImage(ctx, "get", img)
	if err != nil {
		return nil, err
	}
	obs := status.Observation{
		Action:    img.Status.LastAction,
		Changed:   img.Status.Changed,
		Exists:    cur != nil,
		DriverURL: c.drv.URL(),
	}
	if cur != nil {
		obs.ImageID = cur.ID
		obs.State = cur.State
	}
	status.Apply(img, obs)
	return cur, nil
}

type actionFunc func(ctx context.Context, img *v1alpha1.Image) (*Result, error)

// run wraps one action: precondition checks, then the action, then the
// change report.
func (c *Controller) run(ctx context.Context, action string, img *v1alpha1.Image, fn actionFunc) (*Result, error) {
	if img == nil {
		return nil, &Error{Kind: ErrConfig, Action: action, Msg: "no image given"}
	}
	img.Normalize()

	rep := c.begin(action, img)
	if img.Name == "" {
		return rep.finish(ctx, nil, &Error{Kind: ErrConfig, Action: action, Msg: "metadata.name is required"})
	}
	if err := c.checkDriver(action, img); err != nil {
		return rep.finish(ctx, nil, err)
	}

	res, err := fn(ctx, img)
	return rep.finish(ctx, res, err)
}

// checkDriver refuses to act on an image that belongs to another
// connection.
func (c *Controller) checkDriver(action string, img *v1alpha1.Image) error {
	current := c.drv.URL()
	for _, declared := range []string{img.Spec.DriverURL, img.Status.DriverURL} {
		if declared != "" && declared != current {
			return &Error{
				Kind:   ErrUnsupportedOperation,
				Action: action,
				Image:  img.Name,
				Msg: fmt.Sprintf("cannot move from %s to %s: moving images between connections is not supported, destroy and recreate",
					declared, current),
			}
		}
	}
	return nil
}

// fail builds an *Error for the current action.
func fail(kind error, action string, img *v1alpha1.Image, format string, args ...any) *Error {
	return &Error{Kind: kind, Action: action, Image: img.Name, Msg: fmt.Sprintf(format, args...)}
}

// failRemote builds an *Error from a Driver error.
func failRemote(err, fallback error, action string, img *v1alpha1.Image, format string, args ...any) *Error {
	return &Error{Kind: remoteKind(err, fallback), Action: action, Image: img.Name, Msg: fmt.Sprintf(format, args...), Err: err}
}
