package one

import (
	"fmt"

	dyn "github.com/OpenNebula/one/src/oca/go/src/goca/dynamic"

	"github.com/jbweber/oneimage/internal/image"
)

// pairSetter is satisfied by both templates and vectors.
type pairSetter interface {
	AddPair(key string, value interface{}) error
}

// addPairs adds each non-empty value in order.
func addPairs(t pairSetter, pairs [][2]string) error {
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		if err := t.AddPair(p[0], p[1]); err != nil {
			return fmt.Errorf("failed to add %s: %w", p[0], err)
		}
	}
	return nil
}

// imageTemplate serializes an image template for one.image.allocate.
func imageTemplate(t image.ImageTemplate) (string, error) {
	tpl := &dyn.Template{}
	pairs := [][2]string{
		{"NAME", t.Name},
		{"TYPE", t.Type},
		{"FSTYPE", t.FSType},
		{"DRIVER", t.Driver},
		{"DEV_PREFIX", t.DevPrefix},
		{"PATH", t.Path},
		{"DESCRIPTION", t.Description},
		{"TARGET", t.Target},
		{"DISK_TYPE", t.DiskType},
		{"SOURCE", t.Source},
	}
	if err := addPairs(tpl, pairs); err != nil {
		return "", err
	}
	if t.Size > 0 {
		if err := tpl.AddPair("SIZE", t.Size); err != nil {
			return "", fmt.Errorf("failed to add SIZE: %w", err)
		}
	}
	if t.Persistent {
		if err := tpl.AddPair("PERSISTENT", "YES"); err != nil {
			return "", fmt.Errorf("failed to add PERSISTENT: %w", err)
		}
	}
	return tpl.String(), nil
}

// diskTemplate serializes a DISK vector for one.vm.attach.
func diskTemplate(d image.DiskAttachment) (string, error) {
	tpl := &dyn.Template{}
	disk := tpl.AddVector("DISK")
	pairs := [][2]string{
		{"IMAGE", d.Image},
		{"IMAGE_UNAME", d.ImageUName},
		{"TARGET", d.Target},
		{"DEV_PREFIX", d.DevPrefix},
		{"CACHE", d.Cache},
	}
	if err := addPairs(disk, pairs); err != nil {
		return "", err
	}
	return tpl.String(), nil
}
