package image

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/naming"
)

// download fetches the image's backing file. An existing destination is
// never overwritten.
func (c *Controller) download(ctx context.Context, img *v1alpha1.Image) (*Result, error) {
	base := c.opts.DownloadOverride
	if base == "" {
		base = img.Spec.DownloadURL
	}
	if base == "" {
		return nil, fail(ErrConfig, ActionDownload, img,
			"'downloadURL' is required, set ONE_DOWNLOAD to the value shown by the OpenNebula CLI environment")
	}
	if c.opts.Fetcher == nil {
		return nil, fail(ErrConfig, ActionDownload, img, "no fetcher configured")
	}

	var (
		cur *RemoteImage
		err error
	)
	if img.Spec.ImageID != nil {
		cur, err = c.lookupImageByID(ctx, ActionDownload, img, *img.Spec.ImageID)
	} else {
		cur, err = c.lookupImage(ctx, ActionDownload, img)
	}
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fail(ErrNotFound, ActionDownload, img, "image 'NAME: %s/ID: %s' does not exist", img.Name, formatID(img.Spec.ImageID))
	}
	if cur.Source == "" {
		return nil, fail(ErrUnexpectedState, ActionDownload, img, "image %d has no SOURCE", cur.ID)
	}

	dest := img.Spec.ImageFile
	if dest == "" {
		dest = naming.DownloadPath(c.opts.CacheDir, img.Name)
	}
	if _, err := os.Stat(dest); err == nil {
		return nil, fail(ErrConflict, ActionDownload, img, "will not overwrite an existing file: %s", dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Kind: ErrResourceUnavailable, Action: ActionDownload, Image: img.Name, Msg: "failed to check " + dest, Err: err}
	}

	url := naming.SourceURL(base, cur.Source)
	n, err := c.opts.Fetcher.Fetch(ctx, url, dest)
	if err != nil {
		return nil, failRemote(err, ErrRemoteUnavailable, ActionDownload, img, "failed to fetch %s", url)
	}

	c.log.Info("image_downloaded", "image_name", img.Name, "image_id", cur.ID, "path", dest, "bytes", n)
	return &Result{Changed: true, Image: cur}, nil
}

func formatID(id *int) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(*id)
}
