package schedule

import (
	"time"

	"rookery/internal/model"
)

// Rate model constants. Thresholds come from the observed distribution of
// per-account post rates (median ~1.6/day, p75 ~4.1, p90 ~7.2); they are
// policy, not protocol.
const (
	// SeedRatePerDay is the conservative default for a first observation.
	SeedRatePerDay = 2.0
	// MaxRatePerDay caps the smoothed estimate.
	MaxRatePerDay = 100.0

	// Intervals shorter than this carry no rate signal.
	minInformativeDays = 0.04
	// Below this, favor history over the noisy fresh measurement.
	shortWindowDays = 0.5
)

// FixedLowInterval is the re-run interval for data types that carry no
// rate signal (replies, followers, following).
const FixedLowInterval = 18 * time.Hour

// ClassifyRate maps a smoothed posts/day estimate to a cadence tier.
func ClassifyRate(ratePerDay float64) model.Tier {
	switch {
	case ratePerDay >= 7:
		return model.TierVeryHigh
	case ratePerDay >= 3.5:
		return model.TierHigh
	case ratePerDay >= 1.6:
		return model.TierMedHigh
	case ratePerDay >= 0.8:
		return model.TierMedium
	case ratePerDay >= 0.3:
		return model.TierLow
	}
	return model.TierVeryLow
}

// TierInterval maps a tier to its fixed re-run interval.
func TierInterval(t model.Tier) time.Duration {
	switch t {
	case model.TierVeryHigh:
		return 7 * time.Hour
	case model.TierHigh:
		return 8 * time.Hour
	case model.TierMedHigh:
		return 10 * time.Hour
	case model.TierMedium:
		return 12 * time.Hour
	case model.TierLow:
		return 18 * time.Hour
	}
	return 24 * time.Hour
}

// SmoothRate blends the prior estimate with a fresh measurement. Short
// observation windows are noisy, so they weigh less; windows under about an
// hour carry no signal at all and leave the prior untouched.
func SmoothRate(prior, current, elapsedDays float64) float64 {
	switch {
	case elapsedDays < minInformativeDays:
		return clampRate(prior)
	case elapsedDays < shortWindowDays:
		return clampRate(0.7*prior + 0.3*current)
	}
	return clampRate(0.3*prior + 0.7*current)
}

func clampRate(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > MaxRatePerDay {
		return MaxRatePerDay
	}
	return r
}

// Window is the operational hour-of-day range [Start, End) in Loc. Runs are
// never scheduled outside it, mirroring the account's own activity pattern.
type Window struct {
	Start int
	End   int
	Loc   *time.Location
}

// DefaultWindow covers hours 8-24 UTC.
func DefaultWindow() Window { return Window{Start: 8, End: 24, Loc: time.UTC} }

// Clamp pushes t into the operational window: before the window start it moves
// to the start the same day, at or past the end it moves to the start the next
// day. The result is always UTC regardless of Loc, so persisted timestamps
// compare correctly in the store.
func (w Window) Clamp(t time.Time) time.Time {
	loc := w.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	h := local.Hour()
	if h >= w.Start && h < w.End {
		return local.UTC()
	}
	day := time.Date(local.Year(), local.Month(), local.Day(), w.Start, 0, 0, 0, loc)
	if h < w.Start {
		return day.UTC()
	}
	return day.AddDate(0, 0, 1).UTC()
}

// UpdateSchedule computes the task's refreshed cadence after a run that
// observed observedTotal records. Only the posts data type drives dynamic
// classification; everything else runs at a fixed low cadence. The caller
// persists the result together with the task's status update.
func UpdateSchedule(task model.Task, observedTotal int, now time.Time, w Window) (model.Tier, float64, time.Time) {
	if task.DataType != model.DataPosts {
		return model.TierLow, task.RatePerDay, w.Clamp(now.Add(FixedLowInterval))
	}

	delta := observedTotal - task.LastTotal
	if delta < 0 {
		delta = 0
	}

	rate := SeedRatePerDay
	if task.LastRunAt != nil && task.LastTotal > 0 {
		elapsedDays := now.Sub(*task.LastRunAt).Seconds() / 86400.0
		current := 0.0
		if elapsedDays > 0 {
			current = float64(delta) / elapsedDays
		}
		rate = SmoothRate(task.RatePerDay, current, elapsedDays)
	}

	tier := ClassifyRate(rate)
	next := w.Clamp(now.Add(TierInterval(tier)))
	return tier, rate, next
}
