package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"rookery/internal/collect"
	"rookery/internal/logging"
	"rookery/internal/metrics"
	"rookery/internal/model"
	"rookery/internal/schedule"
	"rookery/internal/store"
)

// ErrCollector marks a failure of the external collection layer (timeout,
// navigation failure, missing data) as opposed to a store or merge fault.
var ErrCollector = errors.New("collector failure")

// Merger reconciles collected records into the store. merge.Merger is the
// production implementation.
type Merger interface {
	Merge(ctx context.Context, handle string, dataType model.DataType, records []collect.RawRecord, now time.Time) (model.MergeResult, error)
}

// Deps bundles what a run needs. Now is overridable for tests and defaults to
// the wall clock.
type Deps struct {
	DB      *store.DB
	Session *collect.Session
	Merger  Merger
	Window  schedule.Window
	Ceiling time.Duration
	Now     func() time.Time
	Rand    *rand.Rand
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// BatchOptions selects and shapes one scheduling cycle.
type BatchOptions struct {
	Tier            model.Tier
	SampleSize      int
	OnlyEntities    []string
	SkipCompleted   bool
	ContinueOnError bool
	DefaultMaxCount int
}

// RunSingle collects and merges one (entity, data-type) pair immediately,
// without touching task scheduling state.
func RunSingle(ctx context.Context, d Deps, handle string, dataType model.DataType, maxCount int) (model.MergeResult, error) {
	release, err := d.Session.Acquire(ctx)
	if err != nil {
		return model.MergeResult{}, err
	}
	defer release()

	records, err := collect.CollectTimeBoxed(ctx, d.Session, d.Ceiling, handle, dataType, maxCount)
	if err != nil {
		return model.MergeResult{}, fmt.Errorf("%w: %w", ErrCollector, err)
	}
	return d.Merger.Merge(ctx, handle, dataType, records, d.now())
}

// RunBatch runs one scheduling cycle: select eligible tasks, then drive each
// serially through the pending -> running -> {completed, failed} machine. A
// failed task never aborts the cycle unless ContinueOnError is off.
func RunBatch(ctx context.Context, d Deps, opts BatchOptions) (model.BatchReport, error) {
	report := model.BatchReport{StartedAt: d.now()}

	tasks, err := schedule.SelectPendingTasks(ctx, d.DB, opts.Tier, opts.SampleSize, report.StartedAt, d.Rand)
	if err != nil {
		return report, err
	}
	tasks = filterTasks(tasks, opts)
	logging.L().Infow("batch selected", "tasks", len(tasks), "tier", opts.Tier)

	for _, task := range tasks {
		outcome := runTask(ctx, d, task, opts)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status == model.StatusCompleted {
			report.SuccessCount++
			report.NewRecords += outcome.Result.New
		} else {
			report.ErrorCount++
			if !opts.ContinueOnError {
				break
			}
		}
	}

	report.FinishedAt = d.now()
	metrics.ObserveBatchDuration(report.StartedAt)
	logging.L().Infow("batch done",
		"success", report.SuccessCount, "errors", report.ErrorCount,
		"new_records", report.NewRecords, "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func filterTasks(tasks []model.Task, opts BatchOptions) []model.Task {
	only := make(map[string]bool, len(opts.OnlyEntities))
	for _, h := range opts.OnlyEntities {
		only[h] = true
	}
	out := tasks[:0]
	for _, t := range tasks {
		if len(only) > 0 && !only[t.Handle] {
			continue
		}
		if opts.SkipCompleted && t.Status == model.StatusCompleted {
			continue
		}
		out = append(out, t)
	}
	return out
}

// runTask drives one task to completion. Errors are caught here, recorded on
// the task row, and reported in the outcome; they never escape to the batch.
func runTask(ctx context.Context, d Deps, task model.Task, opts BatchOptions) model.TaskOutcome {
	started := d.now()
	outcome := model.TaskOutcome{Handle: task.Handle, DataType: task.DataType}

	if err := d.DB.MarkTaskRunning(ctx, task.ID, started); err != nil {
		// best-effort: report the failure without a persisted status
		outcome.Status = model.StatusFailed
		outcome.Err = err.Error()
		outcome.Duration = d.now().Sub(started)
		metrics.TaskRuns.WithLabelValues(string(task.DataType), "failed").Inc()
		return outcome
	}

	result, runErr := collectAndMerge(ctx, d, task, opts)
	outcome.Result = result
	outcome.Duration = d.now().Sub(started)

	if runErr != nil {
		outcome.Status = model.StatusFailed
		outcome.Err = runErr.Error()
		if err := d.DB.FailTask(ctx, task.ID, runErr.Error(), d.now()); err != nil {
			logging.L().Errorw("persist task failure", "handle", task.Handle, "error", err)
		}
		metrics.TaskRuns.WithLabelValues(string(task.DataType), "failed").Inc()
		logging.L().Warnw("task failed", "handle", task.Handle, "data_type", task.DataType, "error", runErr)
		return outcome
	}

	// The rolling total advances by the records this run added; its growth is
	// what the rate model measures.
	observedTotal := task.LastTotal + result.New
	tier, ratePerDay, nextRun := schedule.UpdateSchedule(task, observedTotal, d.now(), d.Window)
	if err := d.DB.CompleteTask(ctx, task.ID, tier, ratePerDay, observedTotal, nextRun, d.now()); err != nil {
		logging.L().Errorw("persist task completion", "handle", task.Handle, "error", err)
	}

	outcome.Status = model.StatusCompleted
	metrics.TaskRuns.WithLabelValues(string(task.DataType), "completed").Inc()
	metrics.RecordsNew.WithLabelValues(string(task.DataType)).Add(float64(result.New))
	metrics.RecordsUpdated.WithLabelValues(string(task.DataType)).Add(float64(result.Updated))
	metrics.RecordsDiscarded.Add(float64(result.Discarded))
	logging.L().Infow("task completed",
		"handle", task.Handle, "data_type", task.DataType,
		"new", result.New, "updated", result.Updated, "discarded", result.Discarded,
		"tier", tier, "rate_per_day", ratePerDay, "next_run", nextRun)
	return outcome
}

func collectAndMerge(ctx context.Context, d Deps, task model.Task, opts BatchOptions) (model.MergeResult, error) {
	release, err := d.Session.Acquire(ctx)
	if err != nil {
		return model.MergeResult{}, fmt.Errorf("%w: %w", ErrCollector, err)
	}
	defer release()

	maxCount := task.MaxCount
	if maxCount <= 0 {
		maxCount = opts.DefaultMaxCount
	}
	records, err := collect.CollectTimeBoxed(ctx, d.Session, d.Ceiling, task.Handle, task.DataType, maxCount)
	if err != nil {
		return model.MergeResult{}, fmt.Errorf("%w: %w", ErrCollector, err)
	}
	return d.Merger.Merge(ctx, task.Handle, task.DataType, records, d.now())
}
