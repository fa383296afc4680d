package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/journal"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatImage formats a single Image as JSON.
func (f *JSONFormatter) FormatImage(img *v1alpha1.Image) (string, error) {
	v1alpha1.SetDefaultAPIVersion(img)

	data, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal image to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatImageList formats a list of Images as a Kubernetes-style list:
//
//	{
//	  "apiVersion": "oneimage.jbweber.github.io/v1alpha1",
//	  "kind": "ImageList",
//	  "items": [...]
//	}
func (f *JSONFormatter) FormatImageList(images []*v1alpha1.Image) (string, error) {
	for _, img := range images {
		v1alpha1.SetDefaultAPIVersion(img)
	}
	if images == nil {
		images = []*v1alpha1.Image{}
	}

	wrapper := map[string]interface{}{
		"apiVersion": v1alpha1.GroupName + "/" + v1alpha1.Version,
		"kind":       v1alpha1.ImageKind + "List",
		"items":      images,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(wrapper); err != nil {
		return "", fmt.Errorf("failed to marshal image list to JSON: %w", err)
	}

	return buf.String(), nil
}

// FormatHistory formats journal entries as a JSON array.
func (f *JSONFormatter) FormatHistory(entries []journal.Entry) (string, error) {
	data, err := json.MarshalIndent(historyItems(entries), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal history to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
