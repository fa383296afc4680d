package image

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Image lifecycle states as reported by OpenNebula.
const (
	StateInit           = "INIT"
	StateReady          = "READY"
	StateUsed           = "USED"
	StateDisabled       = "DISABLED"
	StateLocked         = "LOCKED"
	StateError          = "ERROR"
	StateClone          = "CLONE"
	StateDelete         = "DELETE"
	StateUsedPers       = "USED_PERS"
	StateLockedUsed     = "LOCKED_USED"
	StateLockedUsedPers = "LOCKED_USED_PERS"
)

// Action names.
const (
	ActionAllocate = "allocate"
	ActionCreate   = "create"
	ActionDestroy  = "destroy"
	ActionAttach   = "attach"
	ActionSnapshot = "snapshot"
	ActionUpload   = "upload"
	ActionDownload = "download"
)

// RemoteImage is a snapshot of an image as last seen.
type RemoteImage struct {
	ID          int
	Name        string
	UName       string
	State       string
	Path        string
	Source      string
	DatastoreID int
	Driver      string
	Description string
	Persistent  bool

	// Template holds the raw TEMPLATE attributes.
	Template map[string]string
}

// IsUsable returns true for READY, USED and USED_PERS.
func (r *RemoteImage) IsUsable() bool {
	switch r.State {
	case StateReady, StateUsed, StateUsedPers:
		return true
	}
	return false
}

// IsPending returns true while the image is still being prepared.
func (r *RemoteImage) IsPending() bool {
	switch r.State {
	case StateInit, StateLocked:
		return true
	}
	return false
}

// AttachedDisk is one disk of a VM.
type AttachedDisk struct {
	ID      int
	Image   string
	ImageID int
	Target  string
}

// RemoteVM is a snapshot of a VM as last seen.
type RemoteVM struct {
	ID       int
	Name     string
	State    string
	LCMState string
	Disks    []AttachedDisk
}

// DiskByImage returns the disk backed by the named image.
func (vm *RemoteVM) DiskByImage(name string) (AttachedDisk, bool) {
	for _, d := range vm.Disks {
		if d.Image == name {
			return d, true
		}
	}
	return AttachedDisk{}, false
}

// Result is returned by every successful action.
type Result struct {
	// Changed is true only when the action mutated remote or local state.
	Changed bool

	// Image is the resulting remote image, nil after Destroy.
	Image *RemoteImage
}

// ImageTemplate describes an image to allocate. The driver serializes it to
// the remote template format.
type ImageTemplate struct {
	Name        string
	Type        string
	Size        int
	FSType      string
	Driver      string
	DevPrefix   string
	Persistent  bool
	Path        string
	Description string
	Target      string
	DiskType    string
	Source      string
}

// DiskAttachment describes a disk to attach to a VM.
type DiskAttachment struct {
	Image      string
	ImageUName string
	Target     string
	DevPrefix  string
	Cache      string
}

// Permissions holds OpenNebula chmod bits. -1 leaves a bit unchanged.
type Permissions struct {
	OwnerU, OwnerM, OwnerA int
	GroupU, GroupM, GroupA int
	OtherU, OtherM, OtherA int
}

// ParseMode parses a 3-digit octal permission string such as "640".
// Each digit is use (4), manage (2) and admin (1).
func ParseMode(mode string) (Permissions, error) {
	if len(mode) != 3 {
		return Permissions{}, fmt.Errorf("mode '%s' must be 3 octal digits", mode)
	}
	var digits [3]int
	for i, r := range mode {
		d, err := strconv.Atoi(string(r))
		if err != nil || d > 7 {
			return Permissions{}, fmt.Errorf("mode '%s' must be 3 octal digits", mode)
		}
		digits[i] = d
	}
	bit := func(d, mask int) int {
		if d&mask != 0 {
			return 1
		}
		return 0
	}
	return Permissions{
		OwnerU: bit(digits[0], 4), OwnerM: bit(digits[0], 2), OwnerA: bit(digits[0], 1),
		GroupU: bit(digits[1], 4), GroupM: bit(digits[1], 2), GroupA: bit(digits[1], 1),
		OtherU: bit(digits[2], 4), OtherM: bit(digits[2], 2), OtherA: bit(digits[2], 1),
	}, nil
}

// PublicPermissions grants use to others and leaves everything else alone.
func PublicPermissions() Permissions {
	return Permissions{
		OwnerU: -1, OwnerM: -1, OwnerA: -1,
		GroupU: -1, GroupM: -1, GroupA: -1,
		OtherU: 1, OtherM: -1, OtherA: -1,
	}
}

// ActionRecord is what the Recorder stores for every action.
type ActionRecord struct {
	Action    string
	Image     string
	ImageID   int
	Changed   bool
	Outcome   string
	Error     string
	DriverURL string
	StartedAt time.Time
	Duration  time.Duration
}

// vmSettled reports whether a VM has left the transient states an attach
// puts it through. Failure states return ErrUnexpectedState.
func vmSettled(vm *RemoteVM) (bool, error) {
	switch vm.State {
	case "POWEROFF", "UNDEPLOYED", "SUSPENDED", "STOPPED", "HOLD", "PENDING":
		return true, nil
	case "DONE", "FAILED", "CLONING_FAILURE":
		return false, fmt.Errorf("%w: VM '%s' is %s", ErrUnexpectedState, vm.Name, vm.State)
	case "ACTIVE":
		if vm.LCMState == "RUNNING" {
			return true, nil
		}
		if strings.Contains(vm.LCMState, "FAILURE") {
			return false, fmt.Errorf("%w: VM '%s' is %s/%s", ErrUnexpectedState, vm.Name, vm.State, vm.LCMState)
		}
	}
	return false, nil
}
