package imagefile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kdomanski/iso9660"
)

// PackISO writes the contents of dir into an ISO9660 image at dest with
// the given volume label. The image is written to a temporary file next to
// dest and renamed into place, so dest never holds a partial image.
func PackISO(dir, dest, label string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		// The writer stages files in a temp dir of its own
		_ = writer.Cleanup()
	}()

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return addFile(writer, p, filepath.ToSlash(rel))
	})
	if err != nil {
		return fmt.Errorf("failed to add files from %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".oneimage-*.iso")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := writer.WriteTo(tmp, label); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write ISO image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ISO image: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move ISO image into place: %w", err)
	}
	return nil
}

func addFile(writer *iso9660.ImageWriter, src, target string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := writer.AddFile(f, target); err != nil {
		return fmt.Errorf("failed to add %s: %w", target, err)
	}
	return nil
}
