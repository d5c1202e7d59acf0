// Package release computes time-release countdowns for problems whose
// reference solutions unlock at a scheduled moment.
package release

import (
	"context"
	"fmt"
	"time"
)

// Countdown is the remaining time until a release moment, broken down for
// display. Available is the sentinel for an already-elapsed release.
type Countdown struct {
	Days      int  `json:"days"`
	Hours     int  `json:"hours"`
	Minutes   int  `json:"minutes"`
	Seconds   int  `json:"seconds"`
	Available bool `json:"available"`
}

// Remaining computes the countdown from now until releaseAt. The computation
// is pure and idempotent; callers re-invoke it at whatever cadence the
// display requires. A zero or past releaseAt yields the Available sentinel,
// failing open toward unlocking.
func Remaining(now, releaseAt time.Time) Countdown {
	if releaseAt.IsZero() {
		return Countdown{Available: true}
	}

	diff := releaseAt.Sub(now)
	if diff <= 0 {
		return Countdown{Available: true}
	}

	total := int(diff / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   (total % 86400) / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

// Duration returns the countdown's total remaining time at one-second
// resolution.
func (c Countdown) Duration() time.Duration {
	if c.Available {
		return 0
	}
	secs := c.Seconds + 60*c.Minutes + 3600*c.Hours + 86400*c.Days
	return time.Duration(secs) * time.Second
}

// String renders the countdown the way the assessment UI displays it,
// dropping seconds once the horizon is a day or more away.
func (c Countdown) String() string {
	switch {
	case c.Available:
		return "Available now!"
	case c.Days > 0:
		return fmt.Sprintf("%dd %dh %dm", c.Days, c.Hours, c.Minutes)
	case c.Hours > 0:
		return fmt.Sprintf("%dh %dm %ds", c.Hours, c.Minutes, c.Seconds)
	default:
		return fmt.Sprintf("%dm %ds", c.Minutes, c.Seconds)
	}
}

// Watch emits a countdown once per interval until the release moment passes,
// sends the Available sentinel, and closes the channel. It is the release
// transition detector for long-lived sessions.
func Watch(ctx context.Context, releaseAt time.Time, interval time.Duration) <-chan Countdown {
	if interval <= 0 {
		interval = time.Second
	}

	out := make(chan Countdown, 1)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			current := Remaining(time.Now(), releaseAt)
			select {
			case out <- current:
			case <-ctx.Done():
				return
			}
			if current.Available {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
