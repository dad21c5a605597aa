package schedule

import (
	"context"
	"math/rand"
	"time"

	"rookery/internal/model"
	"rookery/internal/store"
)

// SelectPendingTasks picks the next batch of runnable tasks. The eligible set
// is sampled at the entity level, not the task level, so one entity with many
// task rows cannot dominate a cycle; every task of a sampled entity is
// returned, grouped by handle then data type. Sampling is uniform and
// deliberately not work-conserving: skipped eligible tasks wait for a later
// cycle, which keeps the spread fair under limited capacity.
func SelectPendingTasks(ctx context.Context, db *store.DB, tier model.Tier, sampleSize int, now time.Time, rng *rand.Rand) ([]model.Task, error) {
	eligible, err := db.EligibleTasks(ctx, tier, now)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	var handles []string
	seen := make(map[string]bool)
	for _, t := range eligible {
		if !seen[t.Handle] {
			seen[t.Handle] = true
			handles = append(handles, t.Handle)
		}
	}
	if sampleSize <= 0 || len(handles) <= sampleSize {
		return eligible, nil
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	picked := make(map[string]bool, sampleSize)
	for _, i := range rng.Perm(len(handles))[:sampleSize] {
		picked[handles[i]] = true
	}

	out := make([]model.Task, 0, len(eligible))
	for _, t := range eligible {
		if picked[t.Handle] {
			out = append(out, t)
		}
	}
	return out, nil
}
