// Package imagefile inspects and prepares local files before they are
// uploaded as OpenNebula images.
package imagefile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Format is a disk image file format.
type Format string

const (
	// FormatQCOW2 is a QEMU copy-on-write image.
	FormatQCOW2 Format = "qcow2"

	// FormatRaw is a bootable raw disk image.
	FormatRaw Format = "raw"

	// FormatISO is an ISO9660 filesystem image.
	FormatISO Format = "iso"
)

// Magic bytes and signatures for image format detection
var (
	// qcow2Magic is "QFI" followed by 0xfb at offset 0.
	// Reference: https://www.qemu.org/docs/master/interop/qcow2.html
	qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

	// isoMagic is the standard identifier of the primary volume descriptor,
	// which starts at sector 16 (offset 0x8000). The identifier follows the
	// one-byte descriptor type.
	isoMagic  = []byte("CD001")
	isoOffset = int64(0x8001)

	// mbrSignature is the boot sector signature at offset 510.
	mbrSignature = []byte{0x55, 0xaa}
)

// DetectFormat detects the image format of a file by reading magic bytes.
//
// Detection order:
//   - QCOW2: "QFI\xfb" at offset 0
//   - ISO: "CD001" at offset 0x8001 (checked before MBR, hybrid ISOs carry both)
//   - RAW: MBR signature 0x55 0xaa at offset 510
func DetectFormat(filePath string) (Format, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return "", fmt.Errorf("file too small to be valid image (< 4 bytes): %w", err)
	}
	if bytes.Equal(magic, qcow2Magic) {
		return FormatQCOW2, nil
	}

	id := make([]byte, len(isoMagic))
	if _, err := f.ReadAt(id, isoOffset); err == nil && bytes.Equal(id, isoMagic) {
		return FormatISO, nil
	}

	sig := make([]byte, 2)
	if _, err := f.ReadAt(sig, 510); err != nil {
		return "", fmt.Errorf("file too small for boot sector (< 512 bytes): %w", err)
	}
	if bytes.Equal(sig, mbrSignature) {
		return FormatRaw, nil
	}

	return "", fmt.Errorf("unsupported image: not qcow2, not iso and missing boot sector signature")
}

// Driver returns the OpenNebula format driver for a detected format.
// ISO images are attached with the raw driver.
func (f Format) Driver() string {
	if f == FormatQCOW2 {
		return "qcow2"
	}
	return "raw"
}

// ImageType returns the OpenNebula image type implied by the format, or ""
// when the format does not imply one.
func (f Format) ImageType() string {
	if f == FormatISO {
		return "CDROM"
	}
	return ""
}
