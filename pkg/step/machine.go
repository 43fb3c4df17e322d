package step

import (
	"context"
	"time"

	"github.com/odvcencio/webshots/pkg/driver"
	"github.com/odvcencio/webshots/pkg/outcome"
)

// Artifacts is the slice of the artifact sink the state machine needs:
// stale cleanup before a visit, capture targets after one.
type Artifacts interface {
	// RemoveStale deletes any previous artifacts for the item so a
	// failed visit never leaves a misleadingly fresh capture behind.
	RemoveStale(collectionID, stepName string) error
	// ScreenshotPath returns the capture path, creating parent dirs.
	ScreenshotPath(collectionID, stepName string) (string, error)
	// WritePageSource persists the page markup alongside the capture.
	WritePageSource(collectionID, stepName, html string) error
}

// Run executes one work item against an open driver and turns every
// per-item failure into a typed Outcome. Timeouts during the visit
// become KindTimeout, anything else KindError; nothing escapes as an
// error, the caller decides session health separately.
func Run(ctx context.Context, drv driver.Driver, art Artifacts, baseURL string, item Item, spec Spec, t Timeouts) outcome.Outcome {
	if err := art.RemoveStale(item.CollectionID, item.StepName); err != nil {
		return outcome.FromError(err)
	}

	start := time.Now()

	if spec.URLSuffix != nil {
		if *spec.URLSuffix == StayOnPage {
			// The page already shown qualifies; just let its initial
			// load finish.
			if spec.BusySignal != nil {
				if err := drv.WaitGone(ctx, *spec.BusySignal, t.Busy); err != nil {
					return classify(err)
				}
			}
		} else {
			url := baseURL + "/" + item.CollectionID + *spec.URLSuffix
			if err := drv.Navigate(ctx, url); err != nil {
				return classify(err)
			}
		}
	}

	if spec.Action != nil {
		err := drv.Click(ctx, spec.Action.Target, t.Action)
		switch {
		case err == nil:
		case driver.IsTimeout(err):
			// The action target may legitimately never appear (feature
			// absent for this collection); skip rather than fail.
		default:
			return classify(err)
		}
	}

	if spec.ReadySignal != nil {
		if err := drv.WaitVisible(ctx, *spec.ReadySignal, t.Ready); err != nil {
			return classify(err)
		}
	}

	if spec.BusySignal != nil {
		err := drv.WaitVisible(ctx, *spec.BusySignal, t.Grace)
		switch {
		case err == nil:
			// Appeared; now wait out the load.
			if err := drv.WaitGone(ctx, *spec.BusySignal, t.Busy); err != nil {
				return classify(err)
			}
		case driver.IsTimeout(err):
			// Trivial pages never show the signal at all; treat as
			// already done.
		default:
			return classify(err)
		}
	}

	elapsed := time.Since(start)

	// Settle before capture so in-flight transitions don't smear the
	// screenshot.
	select {
	case <-time.After(t.Settle):
	case <-ctx.Done():
		return classify(ctx.Err())
	}

	path, err := art.ScreenshotPath(item.CollectionID, item.StepName)
	if err != nil {
		return outcome.FromError(err)
	}
	if err := drv.Screenshot(ctx, path); err != nil {
		return classify(err)
	}
	if html, err := drv.PageSource(ctx); err == nil {
		if err := art.WritePageSource(item.CollectionID, item.StepName, html); err != nil {
			return outcome.FromError(err)
		}
	}

	return outcome.Duration(elapsed.Seconds())
}

func classify(err error) outcome.Outcome {
	if driver.IsTimeout(err) {
		return outcome.Timeout()
	}
	return outcome.FromError(err)
}
