// Package loader provides functions for loading Image resources from YAML
// files.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// LoadFromFile loads exactly one Image resource from a YAML file.
// The file must be in the oneimage.jbweber.github.io/v1alpha1 format.
func LoadFromFile(path string) (*v1alpha1.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadAllFromFile loads every Image in a multi-document YAML file.
func LoadAllFromFile(path string) ([]*v1alpha1.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadAllFromYAML(data)
}

// LoadFromYAML loads exactly one Image resource from YAML bytes.
func LoadFromYAML(data []byte) (*v1alpha1.Image, error) {
	images, err := LoadAllFromYAML(data)
	if err != nil {
		return nil, err
	}
	if len(images) != 1 {
		return nil, fmt.Errorf("expected exactly one Image document, found %d", len(images))
	}
	return images[0], nil
}

// LoadAllFromYAML loads every Image document from YAML bytes. Unknown
// fields are rejected.
func LoadAllFromYAML(data []byte) ([]*v1alpha1.Image, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var images []*v1alpha1.Image
	for i := 0; ; i++ {
		var img v1alpha1.Image
		err := dec.Decode(&img)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML document %d: %w", i, err)
		}
		if err := validate(&img); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		img.Normalize()
		if img.Generation == 0 {
			img.Generation = 1
		}
		images = append(images, &img)
	}
	return images, nil
}

// SaveToFile saves an Image resource, including its status, to a YAML file.
func SaveToFile(img *v1alpha1.Image, path string) error {
	// Ensure TypeMeta is set
	v1alpha1.SetDefaultAPIVersion(img)

	data, err := yaml.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to marshal image to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// validate checks the type metadata and name. Which spec fields are
// required depends on the action, so the controller checks those.
func validate(img *v1alpha1.Image) error {
	if img.APIVersion == "" {
		return fmt.Errorf("missing required field: apiVersion")
	}
	if img.Kind == "" {
		return fmt.Errorf("missing required field: kind")
	}

	expectedAPIVersion := v1alpha1.GroupName + "/" + v1alpha1.Version
	if img.APIVersion != expectedAPIVersion {
		return fmt.Errorf("unsupported apiVersion: %s (expected: %s)", img.APIVersion, expectedAPIVersion)
	}
	if img.Kind != v1alpha1.ImageKind {
		return fmt.Errorf("unsupported kind: %s (expected: %s)", img.Kind, v1alpha1.ImageKind)
	}
	if img.Name == "" {
		return fmt.Errorf("validation failed: metadata.name is required")
	}
	return nil
}
