package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

func TestLoadFromYAML_Valid(t *testing.T) {
	yaml := `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata:
  name: "  debian-12  "
spec:
  size: 2048
  datastoreID: 1
  type: DATABLOCK
  mode: "640"
  machineID: 12
  diskID: data
`

	img, err := LoadFromYAML([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromYAML() error = %v", err)
	}

	if img.Name != "debian-12" {
		t.Errorf("Expected trimmed name 'debian-12', got %q", img.Name)
	}
	if img.Spec.Size != 2048 {
		t.Errorf("Expected size 2048, got %d", img.Spec.Size)
	}
	if img.Spec.DatastoreID == nil || *img.Spec.DatastoreID != 1 {
		t.Errorf("Expected datastoreID 1, got %v", img.Spec.DatastoreID)
	}
	if id, ok := img.Spec.MachineID.ID(); !ok || id != 12 {
		t.Errorf("Expected numeric machineID 12, got %q", img.Spec.MachineID)
	}
	if _, ok := img.Spec.DiskID.ID(); ok || img.Spec.DiskID != "data" {
		t.Errorf("Expected disk name 'data', got %q", img.Spec.DiskID)
	}
	if img.Generation != 1 {
		t.Errorf("Expected default generation 1, got %d", img.Generation)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing apiVersion",
			yaml: `
kind: Image
metadata:
  name: x
`,
			wantErr: "apiVersion",
		},
		{
			name: "missing kind",
			yaml: `
apiVersion: oneimage.jbweber.github.io/v1alpha1
metadata:
  name: x
`,
			wantErr: "kind",
		},
		{
			name: "wrong apiVersion",
			yaml: `
apiVersion: example.com/v1alpha1
kind: Image
metadata:
  name: x
`,
			wantErr: "unsupported apiVersion",
		},
		{
			name: "wrong kind",
			yaml: `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: VirtualMachine
metadata:
  name: x
`,
			wantErr: "unsupported kind",
		},
		{
			name: "missing name",
			yaml: `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
spec:
  size: 1
`,
			wantErr: "metadata.name",
		},
		{
			name: "unknown field",
			yaml: `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata:
  name: x
spec:
  sizee: 1
`,
			wantErr: "sizee",
		},
		{
			name: "vector machine id",
			yaml: `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata:
  name: x
spec:
  machineID: [1, 2]
`,
			wantErr: "scalar",
		},
		{
			name:    "empty",
			yaml:    ``,
			wantErr: "found 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromYAML([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAllFromYAML_MultiDocument(t *testing.T) {
	yaml := `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata:
  name: base
spec:
  datastoreID: 1
  downloadURL: http://mirror.example.com/debian.qcow2
---
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata:
  name: data
spec:
  size: 1024
  datastoreID: 1
`

	images, err := LoadAllFromYAML([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadAllFromYAML() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(images))
	}
	if images[0].Name != "base" || images[1].Name != "data" {
		t.Errorf("Expected base and data, got %s and %s", images[0].Name, images[1].Name)
	}

	if _, err := LoadFromYAML([]byte(yaml)); err == nil {
		t.Error("LoadFromYAML() should reject more than one document")
	}
}

func TestLoadAllFromYAML_BadSecondDocument(t *testing.T) {
	yaml := `
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata:
  name: ok
---
apiVersion: oneimage.jbweber.github.io/v1alpha1
kind: Image
metadata: {}
`
	_, err := LoadAllFromYAML([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "document 1") {
		t.Errorf("expected error naming document 1, got %v", err)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.yaml")

	img := v1alpha1.NewImage("snap")
	img.Spec.MachineID = "web"
	img.Spec.DiskID = "0"
	img.SetImageID(43)
	img.SetPhase(v1alpha1.ImagePhaseReady)

	if err := SaveToFile(img, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Name != "snap" || loaded.UID != img.UID {
		t.Errorf("Loaded metadata mismatch: %+v", loaded.ObjectMeta)
	}
	if loaded.Spec.MachineID != "web" || loaded.Spec.DiskID != "0" {
		t.Errorf("Loaded refs mismatch: %q/%q", loaded.Spec.MachineID, loaded.Spec.DiskID)
	}
	if loaded.Status.ImageID == nil || *loaded.Status.ImageID != 43 {
		t.Errorf("Loaded status mismatch: %+v", loaded.Status)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

