package image

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

func downloadDriver() *mockDriver {
	drv := newMockDriver()
	found := &RemoteImage{ID: 12, Name: "debian-12", State: StateReady, Source: "/var/lib/one/datastores/1/4f9d2c"}
	drv.imageByNameFunc = func(ctx context.Context, name string) (*RemoteImage, error) {
		if name == "debian-12" {
			return found, nil
		}
		return nil, nil
	}
	drv.imageByIDFunc = func(ctx context.Context, id int) (*RemoteImage, error) {
		if id == 12 {
			return found, nil
		}
		return nil, nil
	}
	return drv
}

func TestDownload_Success(t *testing.T) {
	cache := t.TempDir()
	drv := downloadDriver()
	fetcher := newMockFetcher()
	var gotDest string
	fetcher.fetchFunc = func(ctx context.Context, url, dest string) (int64, error) {
		gotDest = dest
		return 2048, nil
	}
	c := newTestController(drv, func(o *Options) {
		o.Fetcher = fetcher
		o.CacheDir = cache
	})

	img := v1alpha1.NewImage("debian-12")
	img.Spec.DownloadURL = "http://one.example.com/download/"
	res, err := c.Download(context.Background(), img)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if !res.Changed {
		t.Error("Download() should report changed")
	}
	if len(fetcher.fetchCalls) != 1 || fetcher.fetchCalls[0] != "http://one.example.com/download/1/4f9d2c" {
		t.Errorf("fetch calls = %v", fetcher.fetchCalls)
	}
	if gotDest != filepath.Join(cache, "debian-12.qcow2") {
		t.Errorf("dest = %s", gotDest)
	}
	if drv.mutationCount() != 0 {
		t.Error("download must not mutate remote state")
	}
}

func TestDownload_OverrideTakesPrecedence(t *testing.T) {
	drv := downloadDriver()
	fetcher := newMockFetcher()
	c := newTestController(drv, func(o *Options) {
		o.Fetcher = fetcher
		o.CacheDir = t.TempDir()
		o.DownloadOverride = "http://mirror.example.com/one"
	})

	img := v1alpha1.NewImage("debian-12")
	img.Spec.DownloadURL = "http://one.example.com/download"
	if _, err := c.Download(context.Background(), img); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if fetcher.fetchCalls[0] != "http://mirror.example.com/one/1/4f9d2c" {
		t.Errorf("fetched %s, want the override base", fetcher.fetchCalls[0])
	}
}

func TestDownload_ByImageID(t *testing.T) {
	drv := downloadDriver()
	c := newTestController(drv, func(o *Options) {
		o.Fetcher = newMockFetcher()
		o.DownloadOverride = "http://one.example.com/download"
	})

	img := v1alpha1.NewImage("local-name")
	img.Spec.ImageID = intPtr(12)
	img.Spec.ImageFile = filepath.Join(t.TempDir(), "out.qcow2")
	if _, err := c.Download(context.Background(), img); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if len(drv.imageByNameCalls) != 0 {
		t.Error("imageID set, lookup should be by id")
	}
}

func TestDownload_ExistingDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "debian-12.qcow2")
	if err := os.WriteFile(dest, []byte("keep me"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	fetcher := newMockFetcher()
	c := newTestController(downloadDriver(), func(o *Options) {
		o.Fetcher = fetcher
		o.DownloadOverride = "http://one.example.com/download"
	})

	img := v1alpha1.NewImage("debian-12")
	img.Spec.ImageFile = dest
	_, err := c.Download(context.Background(), img)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Download() error = %v, want ErrConflict", err)
	}
	if len(fetcher.fetchCalls) != 0 {
		t.Error("expected no fetch")
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "keep me" {
		t.Error("existing file was modified")
	}
}

func TestDownload_Failures(t *testing.T) {
	tests := []struct {
		name     string
		override string
		img      func() *v1alpha1.Image
		fetchErr error
		wantKind error
		wantName string
	}{
		{
			name:     "no download url",
			img:      func() *v1alpha1.Image { return v1alpha1.NewImage("debian-12") },
			wantKind: ErrConfig,
		},
		{
			name:     "image missing by name",
			override: "http://one.example.com/download",
			img:      func() *v1alpha1.Image { return v1alpha1.NewImage("ubuntu") },
			wantKind: ErrNotFound,
		},
		{
			name:     "image missing by id",
			override: "http://one.example.com/download",
			img: func() *v1alpha1.Image {
				img := v1alpha1.NewImage("debian-12")
				img.Spec.ImageID = intPtr(99)
				return img
			},
			wantKind: ErrNotFound,
		},
		{
			name:     "fetch fails",
			override: "http://one.example.com/download",
			img:      func() *v1alpha1.Image { return v1alpha1.NewImage("debian-12") },
			fetchErr: errors.New("unexpected status 404"),
			wantKind: ErrRemoteUnavailable,
		},
		{
			name:     "local write fails",
			override: "http://one.example.com/download",
			img:      func() *v1alpha1.Image { return v1alpha1.NewImage("debian-12") },
			fetchErr: fmt.Errorf("%w: failed to create download file: no such file or directory", ErrResourceUnavailable),
			wantKind: ErrResourceUnavailable,
			wantName: "ResourceUnavailable",
		},
		{
			name:     "destination created during fetch",
			override: "http://one.example.com/download",
			img:      func() *v1alpha1.Image { return v1alpha1.NewImage("debian-12") },
			fetchErr: fmt.Errorf("%w: will not overwrite an existing file", ErrConflict),
			wantKind: ErrConflict,
			wantName: "Conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newMockFetcher()
			if tt.fetchErr != nil {
				fetcher.fetchFunc = func(ctx context.Context, url, dest string) (int64, error) {
					return 0, tt.fetchErr
				}
			}
			drv := downloadDriver()
			c := newTestController(drv, func(o *Options) {
				o.Fetcher = fetcher
				o.CacheDir = t.TempDir()
				o.DownloadOverride = tt.override
			})

			_, err := c.Download(context.Background(), tt.img())
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("Download() error = %v, want %v", err, tt.wantKind)
			}
			if tt.wantName != "" && KindName(err) != tt.wantName {
				t.Errorf("KindName() = %q, want %q", KindName(err), tt.wantName)
			}
			if tt.wantKind == ErrConfig && drv.lookupCount() != 0 {
				t.Error("expected no remote call")
			}
		})
	}
}
