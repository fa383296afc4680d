// Package output provides formatters for displaying oneimage resources
// and action history in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/journal"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative configs.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats oneimage resources for output.
type Formatter interface {
	// FormatImage formats a single Image resource.
	FormatImage(img *v1alpha1.Image) (string, error)

	// FormatImageList formats a list of Image resources.
	FormatImageList(images []*v1alpha1.Image) (string, error)

	// FormatHistory formats journal entries, newest first.
	FormatHistory(entries []journal.Entry) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}

// historyItem is the serialized form of a journal entry.
type historyItem struct {
	ID         string `json:"id" yaml:"id"`
	Action     string `json:"action" yaml:"action"`
	Image      string `json:"image" yaml:"image"`
	ImageID    *int   `json:"imageID,omitempty" yaml:"imageID,omitempty"`
	Changed    bool   `json:"changed" yaml:"changed"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DriverURL  string `json:"driverURL" yaml:"driverURL"`
	StartedAt  string `json:"startedAt" yaml:"startedAt"`
	DurationMS int64  `json:"durationMS" yaml:"durationMS"`
}

func historyItems(entries []journal.Entry) []historyItem {
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		item := historyItem{
			ID:         e.ID,
			Action:     e.Action,
			Image:      e.Image,
			Changed:    e.Changed,
			Outcome:    e.Outcome,
			Error:      e.Error,
			DriverURL:  e.DriverURL,
			StartedAt:  e.StartedAt,
			DurationMS: e.Duration,
		}
		if e.ImageID >= 0 {
			id := e.ImageID
			item.ImageID = &id
		}
		items = append(items, item)
	}
	return items
}
