package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/imagefile"
	"github.com/jbweber/oneimage/internal/naming"
)

// uploadPlan is everything an upload needs, resolved before any remote call.
type uploadPlan struct {
	tpl         ImageTemplate
	datastoreID int
	perms       *Permissions

	// localFile is the file to serve, empty for URL uploads.
	localFile string

	// packDir is set when localFile is a directory to pack into an ISO.
	packDir string

	port int
}

// upload registers the image from a local file or a URL. An existing image
// must match the declared one exactly; differences are a conflict and are
// never corrected.
func (c *Controller) upload(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	plan, err := c.planUpload(img)
	if err != nil {
		return nil, err
	}

	cur, err := c.lookupImage(ctx, ActionUpload, img)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		if diffs := plan.differences(cur); len(diffs) > 0 {
			return nil, fail(ErrConflict, ActionUpload, img,
				"image already exists (ID: %d) but is not the same image: %s", cur.ID, strings.Join(diffs, ", "))
		}
		c.log.Info("image_up_to_date", "image_name", img.Name, "image_id", cur.ID)
		return &Result{Image: cur}, nil
	}

	if plan.localFile == "" {
		return c.register(ctx, img, plan)
	}
	return c.uploadLocal(ctx, img, plan)
}

// planUpload validates the declared image and resolves the remote path,
// driver and type.
func (c *Controller) planUpload(img *v1alpha1.Image) (*uploadPlan, error) {
	spec := img.Spec
	if spec.DatastoreID == nil {
		return nil, fail(ErrConfig, ActionUpload, img, "'datastoreID' is required")
	}
	if spec.ImageFile == "" && spec.DownloadURL == "" {
		return nil, fail(ErrConfig, ActionUpload, img, "'imageFile' or 'downloadURL' is required")
	}
	if spec.ImageFile != "" && spec.DownloadURL != "" {
		return nil, fail(ErrConfig, ActionUpload, img, "only one of 'imageFile' and 'downloadURL' may be set")
	}
	perms, err := parseSpecMode(ActionUpload, img)
	if err != nil {
		return nil, err
	}
	if perms == nil && spec.Public {
		p := PublicPermissions()
		perms = &p
	}

	plan := &uploadPlan{
		datastoreID: *spec.DatastoreID,
		perms:       perms,
		tpl: ImageTemplate{
			Name:        img.Name,
			Type:        spec.Type,
			Size:        spec.Size,
			FSType:      spec.FSType,
			Driver:      spec.Driver,
			DevPrefix:   spec.Prefix,
			Persistent:  spec.Persistent,
			Description: img.GetDescription(),
			Target:      spec.Target,
			DiskType:    spec.DiskType,
			Source:      spec.Source,
		},
	}

	if spec.DownloadURL != "" {
		plan.tpl.Path = spec.DownloadURL
		if plan.tpl.Driver == "" {
			plan.tpl.Driver = v1alpha1.DefaultDriver
		}
		return plan, nil
	}

	info, err := os.Stat(spec.ImageFile)
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Action: ActionUpload, Image: img.Name,
			Msg: fmt.Sprintf("image file %s does not exist", spec.ImageFile), Err: err}
	}
	if c.opts.FileServer == nil {
		return nil, fail(ErrConfig, ActionUpload, img, "no file server configured for local uploads")
	}

	plan.localFile = spec.ImageFile
	plan.port = spec.HTTPPort
	if plan.port == 0 {
		plan.port = c.opts.HTTPPort
	}

	served := spec.ImageFile
	if info.IsDir() {
		plan.packDir = spec.ImageFile
		served = naming.ISOName(spec.ImageFile)
		if plan.tpl.Driver == "" {
			plan.tpl.Driver = imagefile.FormatISO.Driver()
		}
		if plan.tpl.Type == "" {
			plan.tpl.Type = imagefile.FormatISO.ImageType()
		}
	} else if plan.tpl.Driver == "" || plan.tpl.Type == "" {
		format, err := imagefile.DetectFormat(spec.ImageFile)
		if err != nil {
			c.log.Debug("image_format_unknown", "image_name", img.Name, "path", spec.ImageFile, "error", err)
		}
		if plan.tpl.Driver == "" {
			plan.tpl.Driver = v1alpha1.DefaultDriver
			if err == nil {
				plan.tpl.Driver = format.Driver()
			}
		}
		if plan.tpl.Type == "" && err == nil {
			plan.tpl.Type = format.ImageType()
		}
	}
	if plan.tpl.Type == "" {
		plan.tpl.Type = v1alpha1.DefaultType
	}

	url, err := c.opts.FileServer.URLFor(served, plan.port)
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Action: ActionUpload, Image: img.Name, Msg: "failed to resolve file server URL", Err: err}
	}
	plan.tpl.Path = url
	return plan, nil
}

// differences lists the attributes of cur that differ from the plan.
func (p *uploadPlan) differences(cur *RemoteImage) []string {
	var diffs []string
	check := func(field, have, want string) {
		if have != want {
			diffs = append(diffs, fmt.Sprintf("%s is '%s', want '%s'", field, have, want))
		}
	}
	check("name", cur.Name, p.tpl.Name)
	check("path", cur.Path, p.tpl.Path)
	check("driver", cur.Driver, p.tpl.Driver)
	check("description", cur.Description, p.tpl.Description)
	check("datastoreID", fmt.Sprint(cur.DatastoreID), fmt.Sprint(p.datastoreID))
	return diffs
}

// uploadLocal serves the local file for the remote side to fetch. The file
// server is closed exactly once on every return path.
func (c *Controller) uploadLocal(ctx context.Context, img *v1alpha1.Image, plan *uploadPlan) (res *Result, err error) {
	src := plan.localFile
	if plan.packDir != "" {
		tmp, err := os.MkdirTemp("", "oneimage-iso-")
		if err != nil {
			return nil, &Error{Kind: ErrResourceUnavailable, Action: ActionUpload, Image: img.Name, Msg: "failed to create staging directory", Err: err}
		}
		defer func() { _ = os.RemoveAll(tmp) }()

		src = filepath.Join(tmp, naming.ISOName(plan.packDir))
		if err := imagefile.PackISO(plan.packDir, src, naming.ISOLabel(img.Name)); err != nil {
			return nil, &Error{Kind: ErrResourceUnavailable, Action: ActionUpload, Image: img.Name, Msg: "failed to pack directory", Err: err}
		}
		c.log.Info("directory_packed", "image_name", img.Name, "dir", plan.packDir, "iso", src)
	}

	srv, err := c.opts.FileServer.Serve(ctx, src, plan.port)
	if err != nil {
		return nil, &Error{Kind: ErrResourceUnavailable, Action: ActionUpload, Image: img.Name,
			Msg: fmt.Sprintf("could not start HTTP server on port %d", plan.port), Err: err}
	}
	c.log.Info("file_server_started", "image_name", img.Name, "url", srv.URL())

	defer func() {
		cerr := srv.Close()
		if cerr == nil {
			c.log.Debug("file_server_stopped", "image_name", img.Name)
			return
		}
		c.log.Warn("file_server_stop_failed", "image_name", img.Name, "error", cerr)
		if err != nil {
			err = multierror.Append(err, fmt.Errorf("failed to stop file server: %w", cerr))
		}
	}()

	return c.register(ctx, img, plan)
}

// register allocates the image from plan.tpl.Path and waits for the remote
// side to finish fetching it.
func (c *Controller) register(ctx context.Context, img *v1alpha1.Image, plan *uploadPlan) (*Result, error) {
	id, err := c.drv.AllocateImage(ctx, plan.tpl, plan.datastoreID)
	if err != nil {
		return nil, failRemote(err, ErrRemote, ActionUpload, img, "failed to upload image from %s", plan.tpl.Path)
	}
	c.log.Info("image_upload_requested", "image_name", img.Name, "image_id", id, "path", plan.tpl.Path)

	ready, err := c.waitForImage(ctx, id)
	if err != nil {
		return nil, waitFailure(err, ActionUpload, img.Name, "upload to become READY", c.opts.ImageTimeout, true)
	}

	if plan.perms != nil {
		if err := c.drv.ChmodImage(ctx, id, *plan.perms); err != nil {
			return nil, markMutated(failRemote(err, ErrRemote, ActionUpload, img, "failed to set permissions on image %d", id))
		}
		after, err := c.lookupImageByID(ctx, ActionUpload, img, id)
		if err != nil {
			return nil, markMutated(err)
		}
		if after != nil {
			ready = after
		}
	}

	c.log.Info("image_uploaded", "image_name", img.Name, "image_id", ready.ID, "state", ready.State)
	return &Result{Changed: true, Image: ready}, nil
}
