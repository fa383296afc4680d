package v1alpha1

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group for oneimage resources.
	GroupName = "oneimage.jbweber.github.io"

	// Version is the API version.
	Version = "v1alpha1"

	// ImageKind is the kind string for Image resources.
	ImageKind = "Image"
)

// Defaults applied when the corresponding spec field is empty.
const (
	DefaultType   = "OS"
	DefaultFSType = "ext2"
	DefaultDriver = "qcow2"
	DefaultPrefix = "vd"
)

// NewImage creates an Image with TypeMeta and ObjectMeta filled in.
func NewImage(name string) *Image {
	return &Image{
		TypeMeta: TypeMeta{
			APIVersion: GroupName + "/" + Version,
			Kind:       ImageKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			UID:               uuid.New().String(),
			CreationTimestamp: Time{Time: time.Now()},
			Generation:        1,
		},
	}
}

// SetDefaultAPIVersion ensures the image has apiVersion and kind set.
func SetDefaultAPIVersion(img *Image) {
	if img.APIVersion == "" {
		img.APIVersion = GroupName + "/" + Version
	}
	if img.Kind == "" {
		img.Kind = ImageKind
	}
}

// GetType returns the image type with default fallback.
func (img *Image) GetType() string {
	if img.Spec.Type == "" {
		return DefaultType
	}
	return img.Spec.Type
}

// GetFSType returns the filesystem type with default fallback.
func (img *Image) GetFSType() string {
	if img.Spec.FSType == "" {
		return DefaultFSType
	}
	return img.Spec.FSType
}

// GetDriver returns the format driver with default fallback.
func (img *Image) GetDriver() string {
	if img.Spec.Driver == "" {
		return DefaultDriver
	}
	return img.Spec.Driver
}

// GetPrefix returns the device prefix with default fallback.
func (img *Image) GetPrefix() string {
	if img.Spec.Prefix == "" {
		return DefaultPrefix
	}
	return img.Spec.Prefix
}

// GetDescription returns the description, defaulting to "<name> image".
func (img *Image) GetDescription() string {
	if img.Spec.Description == "" {
		return fmt.Sprintf("%s image", img.Name)
	}
	return img.Spec.Description
}

// SetPhase sets the phase in status.
func (img *Image) SetPhase(phase ImagePhase) {
	img.Status.Phase = phase
}

// GetPhase returns the current phase.
func (img *Image) GetPhase() ImagePhase {
	return img.Status.Phase
}

// SetImageID records the remote id, or clears it when id is negative.
func (img *Image) SetImageID(id int) {
	if id < 0 {
		img.Status.ImageID = nil
		return
	}
	img.Status.ImageID = &id
}

// UpdateObservedGeneration copies metadata.generation into status.
func (img *Image) UpdateObservedGeneration() {
	img.Status.ObservedGeneration = img.Generation
}

// Normalize trims user input. Image names are case sensitive remotely, so
// they are not lowercased.
func (img *Image) Normalize() {
	img.Name = strings.TrimSpace(img.Name)
	img.Spec.Mode = strings.TrimSpace(img.Spec.Mode)
	img.Spec.MachineID = Ref(strings.TrimSpace(string(img.Spec.MachineID)))
	img.Spec.DiskID = Ref(strings.TrimSpace(string(img.Spec.DiskID)))
	img.Spec.DownloadURL = strings.TrimSpace(img.Spec.DownloadURL)
	img.Spec.DriverURL = strings.TrimSpace(img.Spec.DriverURL)
}
