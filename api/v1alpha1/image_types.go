package v1alpha1

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Image is the desired state of one OpenNebula image plus what was last
// observed about it.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="State",type=string,JSONPath=`.status.state`
type Image struct {
	TypeMeta `json:",inline" yaml:",inline"`

	// +optional
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Spec is the declared image configuration.
	Spec ImageSpec `json:"spec" yaml:"spec"`

	// Status is filled in by the controller after each action.
	// +optional
	Status ImageStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// ImageSpec defines the desired state of an image. Which fields are
// required depends on the action being run against it.
type ImageSpec struct {
	// Size of a new empty image in MB. Required by allocate and create.
	// +optional
	Size int `json:"size,omitempty" yaml:"size,omitempty"`

	// DatastoreID is the target datastore. Required by allocate, create and upload.
	// +optional
	DatastoreID *int `json:"datastoreID,omitempty" yaml:"datastoreID,omitempty"`

	// Type is the OpenNebula image type (OS, CDROM, DATABLOCK).
	// Defaults to "OS".
	// +optional
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// FSType is the filesystem of a new datablock. Defaults to "ext2".
	// +optional
	FSType string `json:"fsType,omitempty" yaml:"fsType,omitempty"`

	// Driver is the image format driver. Defaults to "qcow2".
	// +optional
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Prefix is the device prefix. Defaults to "vd".
	// +optional
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Persistent marks the image persistent.
	// +optional
	Persistent bool `json:"persistent,omitempty" yaml:"persistent,omitempty"`

	// Public grants use permission to others after upload when Mode is empty.
	// +optional
	Public bool `json:"public,omitempty" yaml:"public,omitempty"`

	// Mode is a 3-digit octal permission string, e.g. "640".
	// +optional
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Description of an uploaded image. Defaults to "<name> image".
	// +optional
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// ImageFile is a local file or directory to upload, or the download
	// destination.
	// +optional
	ImageFile string `json:"imageFile,omitempty" yaml:"imageFile,omitempty"`

	// DownloadURL is the upload source URL, or the download base URL.
	// +optional
	DownloadURL string `json:"downloadURL,omitempty" yaml:"downloadURL,omitempty"`

	// ImageID selects the image to download by id instead of name.
	// +optional
	ImageID *int `json:"imageID,omitempty" yaml:"imageID,omitempty"`

	// DiskID is the VM disk to snapshot, by id or by image name.
	// +optional
	DiskID Ref `json:"diskID,omitempty" yaml:"diskID,omitempty"`

	// Target device for attach, e.g. "vdb".
	// +optional
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Cache mode for attach, e.g. "none".
	// +optional
	Cache string `json:"cache,omitempty" yaml:"cache,omitempty"`

	// DiskType passed through on upload (e.g. "BLOCK").
	// +optional
	DiskType string `json:"diskType,omitempty" yaml:"diskType,omitempty"`

	// Source passed through on upload.
	// +optional
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// MachineID is the VM for attach and snapshot, by id or by name.
	// +optional
	MachineID Ref `json:"machineID,omitempty" yaml:"machineID,omitempty"`

	// HTTPPort overrides the local file server port for this upload.
	// +optional
	HTTPPort int `json:"httpPort,omitempty" yaml:"httpPort,omitempty"`

	// DriverURL pins the OpenNebula connection this image belongs to.
	// Actions against a different connection are refused.
	// +optional
	DriverURL string `json:"driverURL,omitempty" yaml:"driverURL,omitempty"`
}

// ImageStatus is the observed state of an image.
type ImageStatus struct {
	// +optional
	Phase ImagePhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// ImageID is the remote id, absent when the image does not exist.
	// +optional
	ImageID *int `json:"imageID,omitempty" yaml:"imageID,omitempty"`

	// State is the raw remote lifecycle state, e.g. "READY".
	// +optional
	State string `json:"state,omitempty" yaml:"state,omitempty"`

	// DriverURL is the connection that last managed the image.
	// +optional
	DriverURL string `json:"driverURL,omitempty" yaml:"driverURL,omitempty"`

	// LastAction is the last action run, e.g. "create".
	// +optional
	LastAction string `json:"lastAction,omitempty" yaml:"lastAction,omitempty"`

	// Changed reports whether the last action mutated remote state.
	// +optional
	Changed bool `json:"changed,omitempty" yaml:"changed,omitempty"`

	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`

	// +optional
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// ImagePhase is a coarse summary of the remote image state.
type ImagePhase string

const (
	// ImagePhasePending means the image exists but is still INIT or LOCKED.
	ImagePhasePending ImagePhase = "Pending"

	// ImagePhaseReady means the image is READY.
	ImagePhaseReady ImagePhase = "Ready"

	// ImagePhaseInUse means the image is attached (USED or USED_PERS).
	ImagePhaseInUse ImagePhase = "InUse"

	// ImagePhaseAbsent means no image with this name exists.
	ImagePhaseAbsent ImagePhase = "Absent"

	// ImagePhaseFailed means the last action failed.
	ImagePhaseFailed ImagePhase = "Failed"
)

// Condition types.
const (
	// ConditionReady is True when the image is usable.
	ConditionReady = "Ready"
)

// Ref refers to a remote object by numeric id or by name. In YAML and JSON
// it may be written as either a number or a string.
type Ref string

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return strings.TrimSpace(string(r)) == ""
}

// ID returns the numeric id if the reference is an integer.
func (r Ref) ID() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(string(r)))
	if err != nil {
		return 0, false
	}
	return id, true
}

// String returns the reference as written.
func (r Ref) String() string {
	return string(r)
}

// UnmarshalYAML accepts any scalar.
func (r *Ref) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("reference must be a scalar, got %s", node.ShortTag())
	}
	*r = Ref(node.Value)
	return nil
}

// UnmarshalJSON accepts a string or a number.
func (r *Ref) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("reference must be a string or a number: %w", err)
	}
	*r = Ref(n.String())
	return nil
}

// DeepCopy creates a deep copy of the Image.
func (in *Image) DeepCopy() *Image {
	if in == nil {
		return nil
	}
	out := new(Image)
	*out = *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec.DatastoreID = copyInt(in.Spec.DatastoreID)
	out.Spec.ImageID = copyInt(in.Spec.ImageID)
	out.Status.ImageID = copyInt(in.Status.ImageID)
	if in.Status.Conditions != nil {
		out.Status.Conditions = make([]Condition, len(in.Status.Conditions))
		copy(out.Status.Conditions, in.Status.Conditions)
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
