// Package v1alpha1 contains API types for oneimage.jbweber.github.io/v1alpha1.
//
// The types follow Kubernetes API conventions (TypeMeta, ObjectMeta, Spec,
// Status) without importing k8s.io/apimachinery, so image descriptors read
// like any other declarative resource and can be stored next to them.
package v1alpha1

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// TypeMeta describes an object's kind and API version.
type TypeMeta struct {
	// Kind is the resource kind in CamelCase, e.g. "Image".
	// +optional
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// APIVersion is the versioned schema of this object.
	// +optional
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta is the metadata carried by every resource.
type ObjectMeta struct {
	// Name is the remote image name. Required.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// +optional
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// +optional
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`

	// CreationTimestamp is set when the object is constructed locally.
	// +optional
	CreationTimestamp Time `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`

	// UID identifies this descriptor across runs.
	// +optional
	UID string `json:"uid,omitempty" yaml:"uid,omitempty"`

	// Generation increments when the desired state changes.
	// +optional
	Generation int64 `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// Time wraps time.Time and serializes as RFC3339.
type Time struct {
	time.Time `json:"-" yaml:"-"`
}

// Now returns the current time as a Time.
func Now() Time {
	return Time{Time: time.Now()}
}

// MarshalJSON writes RFC3339, or null for the zero time.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// UnmarshalJSON accepts RFC3339, null, or an empty string.
func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalYAML writes RFC3339, or null for the zero time.
func (t Time) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// UnmarshalYAML accepts RFC3339 or an empty/null scalar.
func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" || node.Value == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, node.Value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Condition is one observation about the state of a resource.
type Condition struct {
	// Type of condition, e.g. "Ready".
	Type string `json:"type" yaml:"type"`

	// Status is True, False or Unknown.
	Status ConditionStatus `json:"status" yaml:"status"`

	// ObservedGeneration is the metadata.generation the condition was computed from.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`

	// LastTransitionTime is when Status last changed.
	// +optional
	LastTransitionTime Time `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`

	// Reason is a CamelCase identifier for the last transition.
	// +optional
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Message is a human-readable explanation.
	// +optional
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ConditionStatus is the status of a condition.
type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// DeepCopy returns a copy of the metadata with its maps duplicated.
func (in *ObjectMeta) DeepCopy() *ObjectMeta {
	if in == nil {
		return nil
	}
	out := new(ObjectMeta)
	*out = *in
	if in.Labels != nil {
		out.Labels = make(map[string]string, len(in.Labels))
		for k, v := range in.Labels {
			out.Labels[k] = v
		}
	}
	if in.Annotations != nil {
		out.Annotations = make(map[string]string, len(in.Annotations))
		for k, v := range in.Annotations {
			out.Annotations[k] = v
		}
	}
	return out
}
