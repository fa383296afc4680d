package one

import (
	"strconv"
	"strings"

	dyn "github.com/OpenNebula/one/src/oca/go/src/goca/dynamic"
	imgschema "github.com/OpenNebula/one/src/oca/go/src/goca/schemas/image"
	"github.com/OpenNebula/one/src/oca/go/src/goca/schemas/shared"
	vmschema "github.com/OpenNebula/one/src/oca/go/src/goca/schemas/vm"

	"github.com/jbweber/oneimage/internal/image"
)

// remoteImage converts a goca image. States newer than goca's table come
// back as STATE_<n> so the controller reports them as unexpected.
func remoteImage(x *imgschema.Image) *image.RemoteImage {
	state, err := x.StateString()
	if err != nil {
		state = "STATE_" + strconv.Itoa(x.StateRaw)
	}

	tpl := pairs(x.Template.Elements)
	return &image.RemoteImage{
		ID:          x.ID,
		Name:        x.Name,
		UName:       x.UName,
		State:       state,
		Path:        x.Path,
		Source:      x.Source,
		DatastoreID: intValue(x.DatastoreID),
		Driver:      tpl["DRIVER"],
		Description: tpl["DESCRIPTION"],
		Persistent:  intValue(x.Persistent) == 1,
		Template:    tpl,
	}
}

// remoteVM converts a goca VM with the disks from its template.
func remoteVM(x *vmschema.VM) *image.RemoteVM {
	state, lcm, err := x.StateString()
	if err != nil {
		state = "VM_STATE_" + strconv.Itoa(x.StateRaw)
		lcm = "LCM_STATE_" + strconv.Itoa(x.LCMStateRaw)
	}

	vm := &image.RemoteVM{
		ID:       x.ID,
		Name:     x.Name,
		State:    state,
		LCMState: lcm,
	}
	for _, d := range x.Template.GetVectors("DISK") {
		id, err := d.GetInt("DISK_ID")
		if err != nil {
			continue
		}
		imageID, err := d.GetInt("IMAGE_ID")
		if err != nil {
			imageID = -1
		}
		name, _ := d.GetStr("IMAGE")
		target, _ := d.GetStr("TARGET")
		vm.Disks = append(vm.Disks, image.AttachedDisk{
			ID:      id,
			Image:   name,
			ImageID: imageID,
			Target:  target,
		})
	}
	return vm
}

// pairs returns the single-valued attributes of a template.
func pairs(elems []dyn.Element) map[string]string {
	out := make(map[string]string)
	for _, e := range elems {
		if p, ok := e.(*dyn.Pair); ok {
			out[p.Key()] = strings.TrimSpace(p.Value)
		}
	}
	return out
}

func intValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// permissions converts chmod bits to goca's argument type.
func permissions(p image.Permissions) shared.Permissions {
	var out shared.Permissions
	setBit(&out.OwnerU, p.OwnerU)
	setBit(&out.OwnerM, p.OwnerM)
	setBit(&out.OwnerA, p.OwnerA)
	setBit(&out.GroupU, p.GroupU)
	setBit(&out.GroupM, p.GroupM)
	setBit(&out.GroupA, p.GroupA)
	setBit(&out.OtherU, p.OtherU)
	setBit(&out.OtherM, p.OtherM)
	setBit(&out.OtherA, p.OtherA)
	return out
}

func setBit[T ~int8 | ~int](dst *T, v int) {
	*dst = T(v)
}
