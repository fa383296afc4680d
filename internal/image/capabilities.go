package image

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// diskSaveAsVersion is the first release with one.vm.disksaveas.
var diskSaveAsVersion = version.Must(version.NewVersion("4.14"))

// Capabilities are the server features the controller depends on,
// resolved once per connection.
type Capabilities struct {
	// Version is the server version as reported.
	Version string

	// DiskSaveAs selects disk save-as for snapshots instead of the legacy
	// hot save-disk call.
	DiskSaveAs bool
}

// ResolveCapabilities derives Capabilities from a server version string.
func ResolveCapabilities(raw string) (Capabilities, error) {
	v, err := version.NewVersion(raw)
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to parse server version '%s': %w", raw, err)
	}
	return Capabilities{
		Version:    v.String(),
		DiskSaveAs: v.GreaterThanOrEqual(diskSaveAsVersion),
	}, nil
}
