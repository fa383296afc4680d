package image

import (
	"context"
	"time"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/status"
)

// report tracks one action from begin to finish.
type report struct {
	c       *Controller
	action  string
	img     *v1alpha1.Image
	started time.Time
}

func (c *Controller) begin(action string, img *v1alpha1.Image) *report {
	c.log.Debug("action_started", "action", action, "image_name", img.Name)
	return &report{c: c, action: action, img: img, started: time.Now()}
}

// finish logs the outcome, updates the image status, records the action
// and returns res and err unchanged. Recorder failures are logged only.
func (r *report) finish(ctx context.Context, res *Result, err error) (*Result, error) {
	elapsed := time.Since(r.started)
	rec := ActionRecord{
		Action:    r.action,
		Image:     r.img.Name,
		ImageID:   -1,
		DriverURL: r.c.drv.URL(),
		StartedAt: r.started,
		Duration:  elapsed,
	}

	if err != nil {
		rec.Outcome = KindName(err)
		rec.Error = err.Error()
		status.MarkFailed(r.img, r.action, rec.Outcome, rec.Error)
		r.c.log.Error("action_failed",
			"action", r.action,
			"image_name", r.img.Name,
			"kind", rec.Outcome,
			"mutated", IsMutated(err),
			"error", err,
		)
	} else {
		obs := status.Observation{
			Action:    r.action,
			Changed:   res.Changed,
			Exists:    res.Image != nil,
			DriverURL: rec.DriverURL,
		}
		if res.Image != nil {
			obs.ImageID = res.Image.ID
			obs.State = res.Image.State
			rec.ImageID = res.Image.ID
		}
		status.Apply(r.img, obs)

		rec.Changed = res.Changed
		rec.Outcome = "unchanged"
		if res.Changed {
			rec.Outcome = "changed"
		}
		r.c.log.Info("action_completed",
			"action", r.action,
			"image_name", r.img.Name,
			"image_id", rec.ImageID,
			"changed", res.Changed,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if r.c.opts.Observer != nil {
		r.c.opts.Observer.ObserveAction(r.action, rec.Outcome, elapsed)
	}
	if r.c.opts.Recorder != nil {
		// The action already happened, so a canceled ctx must not drop the record.
		if recErr := r.c.opts.Recorder.Record(context.WithoutCancel(ctx), rec); recErr != nil {
			r.c.log.Warn("action_record_failed", "action", r.action, "image_name", r.img.Name, "error", recErr)
		}
	}

	if err != nil {
		return nil, err
	}
	return res, nil
}
