package status

import (
	"github.com/jbweber/oneimage/api/v1alpha1"
)

// Observation is what an action learned about the remote image.
type Observation struct {
	Action    string
	Changed   bool
	Exists    bool
	ImageID   int
	State     string
	DriverURL string
}

// PhaseForState maps a remote image state onto a phase.
// States outside the lifecycle the controller models map to Failed.
func PhaseForState(state string) v1alpha1.ImagePhase {
	switch state {
	case "INIT", "LOCKED", "CLONE":
		return v1alpha1.ImagePhasePending
	case "READY":
		return v1alpha1.ImagePhaseReady
	case "USED", "USED_PERS", "LOCKED_USED", "LOCKED_USED_PERS":
		return v1alpha1.ImagePhaseInUse
	default:
		return v1alpha1.ImagePhaseFailed
	}
}

// Apply records a successful action on the image status.
func Apply(img *v1alpha1.Image, obs Observation) {
	img.Status.LastAction = obs.Action
	img.Status.Changed = obs.Changed
	if obs.DriverURL != "" {
		img.Status.DriverURL = obs.DriverURL
	}

	if !obs.Exists {
		img.SetImageID(-1)
		img.Status.State = ""
		img.SetPhase(v1alpha1.ImagePhaseAbsent)
		RemoveCondition(img, v1alpha1.ConditionReady)
		img.UpdateObservedGeneration()
		return
	}

	img.SetImageID(obs.ImageID)
	img.Status.State = obs.State
	phase := PhaseForState(obs.State)
	img.SetPhase(phase)

	switch phase {
	case v1alpha1.ImagePhaseReady, v1alpha1.ImagePhaseInUse:
		SetCondition(img, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "ImageReady", "image is "+obs.State)
	case v1alpha1.ImagePhasePending:
		SetCondition(img, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "ImagePending", "image is "+obs.State)
	default:
		SetCondition(img, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "UnexpectedState", "image is "+obs.State)
	}
	img.UpdateObservedGeneration()
}

// IsUsable returns true if images in this phase can be attached.
func IsUsable(phase v1alpha1.ImagePhase) bool {
	return phase == v1alpha1.ImagePhaseReady || phase == v1alpha1.ImagePhaseInUse
}

// IsTransitioning returns true if the image is still converging remotely.
func IsTransitioning(phase v1alpha1.ImagePhase) bool {
	return phase == v1alpha1.ImagePhasePending
}
