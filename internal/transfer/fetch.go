// Package transfer downloads published image files from OpenNebula.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"

	"github.com/jbweber/oneimage/internal/image"
)

// DefaultFileMode is applied to downloaded files.
const DefaultFileMode os.FileMode = 0o644

// Options configures a Fetcher.
type Options struct {
	// Client overrides the HTTP client. Defaults to a cleanhttp client.
	Client *http.Client

	// FileMode of downloaded files. Defaults to DefaultFileMode.
	FileMode os.FileMode

	Logger *slog.Logger
}

// Fetcher downloads URLs to local files. It satisfies image.Fetcher.
type Fetcher struct {
	client *http.Client
	mode   os.FileMode
	log    *slog.Logger
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{client: opts.Client, mode: opts.FileMode, log: opts.Logger}
	if f.client == nil {
		f.client = cleanhttp.DefaultClient()
	}
	if f.mode == 0 {
		f.mode = DefaultFileMode
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// Fetch downloads url to dest and returns the number of bytes written.
// The file is written next to dest and linked into place, so dest only
// appears once the download is complete and is never replaced. Responses
// other than 2xx wrap image.ErrRemote, a dest that appeared meanwhile
// wraps image.ErrConflict and local I/O failures wrap
// image.ErrResourceUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	f.log.Info("download_start", "url", url, "dest", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to build request for %s", url)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", image.ErrRemoteUnavailable, errors.Wrapf(err, "failed to fetch %s", url))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: GET %s returned %s", image.ErrRemote, url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-")
	if err != nil {
		return 0, local(err, "failed to create download file")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(&fileWriter{tmp}, hash), resp.Body)
	if err != nil {
		var werr *writeError
		if errors.As(err, &werr) {
			return 0, local(werr.err, "failed to write download file")
		}
		return 0, fmt.Errorf("%w: %v", image.ErrRemoteUnavailable, errors.Wrapf(err, "failed to download %s", url))
	}
	if err := tmp.Sync(); err != nil {
		return 0, local(err, "failed to sync download file")
	}
	if err := tmp.Close(); err != nil {
		return 0, local(err, "failed to close download file")
	}
	if err := os.Chmod(tmpPath, f.mode); err != nil {
		return 0, local(err, "failed to set download file mode")
	}
	if err := commit(tmpPath, dest); err != nil {
		return 0, err
	}

	f.log.Info("download_complete",
		"dest", dest,
		"size_bytes", size,
		"sha256", hex.EncodeToString(hash.Sum(nil)),
	)
	return size, nil
}

// commit links the finished download to dest. It fails when dest exists.
func commit(tmpPath, dest string) error {
	if err := os.Link(tmpPath, dest); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: will not overwrite an existing file: %s", image.ErrConflict, dest)
		}
		return local(err, "failed to move download to "+dest)
	}
	return nil
}

// local wraps a local filesystem failure.
func local(err error, msg string) error {
	return fmt.Errorf("%w: %v", image.ErrResourceUnavailable, errors.Wrap(err, msg))
}

// fileWriter tags write failures as local.
type fileWriter struct {
	f *os.File
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}

type writeError struct {
	err error
}

func (e *writeError) Error() string {
	return e.err.Error()
}
