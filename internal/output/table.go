package output

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/journal"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatImage formats a single Image as a table row.
func (f *TableFormatter) FormatImage(img *v1alpha1.Image) (string, error) {
	return f.FormatImageList([]*v1alpha1.Image{img})
}

// FormatImageList formats a list of Images as a table.
func (f *TableFormatter) FormatImageList(images []*v1alpha1.Image) (string, error) {
	if len(images) == 0 {
		return "No images found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tID\tPHASE\tSTATE\tLAST ACTION\tCHANGED\tAGE")
	}

	for _, img := range images {
		id := "-"
		if img.Status.ImageID != nil {
			id = strconv.Itoa(*img.Status.ImageID)
		}

		lastAction := orDash(img.Status.LastAction)
		changed := "-"
		if img.Status.LastAction != "" {
			changed = strconv.FormatBool(img.Status.Changed)
		}

		age := "-"
		if !img.CreationTimestamp.IsZero() {
			age = formatAge(time.Since(img.CreationTimestamp.Time))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			img.Name, id, orDash(string(img.GetPhase())), orDash(img.Status.State), lastAction, changed, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatHistory formats journal entries as a table.
func (f *TableFormatter) FormatHistory(entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "No history found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "STARTED\tACTION\tIMAGE\tID\tOUTCOME\tDURATION")
	}

	for _, e := range entries {
		id := "-"
		if e.ImageID >= 0 {
			id = strconv.Itoa(e.ImageID)
		}
		started := e.StartedAt
		if t, err := time.Parse(time.RFC3339Nano, e.StartedAt); err == nil {
			started = t.Local().Format("2006-01-02 15:04:05")
		}
		duration := (time.Duration(e.Duration) * time.Millisecond).String()

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			started, e.Action, e.Image, id, e.Outcome, duration)
	}

	_ = w.Flush()
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	if years := days / 365; years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
