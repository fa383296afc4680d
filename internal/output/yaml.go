package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/journal"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatImage formats a single Image as YAML.
func (f *YAMLFormatter) FormatImage(img *v1alpha1.Image) (string, error) {
	v1alpha1.SetDefaultAPIVersion(img)

	data, err := yaml.Marshal(img)
	if err != nil {
		return "", fmt.Errorf("failed to marshal image to YAML: %w", err)
	}

	return string(data), nil
}

// FormatImageList formats a list of Images as a YAML stream (multiple
// documents separated by ---), which the loader reads back.
func (f *YAMLFormatter) FormatImageList(images []*v1alpha1.Image) (string, error) {
	var buf bytes.Buffer

	for i, img := range images {
		v1alpha1.SetDefaultAPIVersion(img)

		data, err := yaml.Marshal(img)
		if err != nil {
			return "", fmt.Errorf("failed to marshal image %s to YAML: %w", img.Name, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatHistory formats journal entries as a YAML sequence.
func (f *YAMLFormatter) FormatHistory(entries []journal.Entry) (string, error) {
	data, err := yaml.Marshal(historyItems(entries))
	if err != nil {
		return "", fmt.Errorf("failed to marshal history to YAML: %w", err)
	}
	return string(data), nil
}
