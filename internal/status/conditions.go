// Package status maintains the Status block of Image resources: the
// coarse phase derived from the remote state and the Ready condition.
package status

import (
	"time"

	"github.com/jbweber/oneimage/api/v1alpha1"
)

// SetCondition adds or updates a condition on the image status.
// LastTransitionTime only moves when the condition status changes.
func SetCondition(img *v1alpha1.Image, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	now := v1alpha1.Time{Time: time.Now()}

	for i := range img.Status.Conditions {
		if img.Status.Conditions[i].Type != condType {
			continue
		}
		existing := &img.Status.Conditions[i]
		if existing.Status != status {
			existing.LastTransitionTime = now
		}
		existing.Status = status
		existing.Reason = reason
		existing.Message = message
		existing.ObservedGeneration = img.Generation
		return
	}

	img.Status.Conditions = append(img.Status.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: img.Generation,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns a condition by type, or nil if not found.
func GetCondition(img *v1alpha1.Image, condType string) *v1alpha1.Condition {
	for i := range img.Status.Conditions {
		if img.Status.Conditions[i].Type == condType {
			return &img.Status.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(img *v1alpha1.Image, condType string) bool {
	cond := GetCondition(img, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// RemoveCondition removes a condition by type.
func RemoveCondition(img *v1alpha1.Image, condType string) {
	filtered := make([]v1alpha1.Condition, 0, len(img.Status.Conditions))
	for i := range img.Status.Conditions {
		if img.Status.Conditions[i].Type != condType {
			filtered = append(filtered, img.Status.Conditions[i])
		}
	}
	img.Status.Conditions = filtered
}

// MarkFailed sets Ready to False and the phase to Failed.
func MarkFailed(img *v1alpha1.Image, action, reason, message string) {
	img.Status.LastAction = action
	SetCondition(img, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, reason, message)
	img.SetPhase(v1alpha1.ImagePhaseFailed)
}
