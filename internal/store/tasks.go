package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"rookery/internal/model"
)

// UpsertTask registers (or reactivates) interest in an (entity, data-type)
// pair. An existing task keeps its schedule state; only the cap and the
// enabled flag are refreshed.
func (d *DB) UpsertTask(ctx context.Context, handle string, dataType model.DataType, maxCount int, now time.Time) (model.Task, error) {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO tasks (handle, data_type, max_count, enabled, status, created_at, updated_at)
		VALUES (?, ?, ?, 1, 'pending', ?, ?)
		ON CONFLICT(handle, data_type) DO UPDATE SET
			max_count = excluded.max_count,
			enabled = 1,
			updated_at = excluded.updated_at`,
		handle, dataType, maxCount, now, now)
	if err != nil {
		return model.Task{}, unavailable("upsert task", err)
	}
	return d.GetTask(ctx, handle, dataType)
}

// GetTask returns the task row for (handle, dataType), or ErrNotFound.
func (d *DB) GetTask(ctx context.Context, handle string, dataType model.DataType) (model.Task, error) {
	var t model.Task
	query, args, err := builder.Select("*").From("tasks").
		Where(sq.Eq{"handle": handle, "data_type": dataType}).ToSql()
	if err != nil {
		return t, fmt.Errorf("build task query: %w", err)
	}
	if err := d.sql.GetContext(ctx, &t, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, fmt.Errorf("task %s/%s: %w", handle, dataType, ErrNotFound)
		}
		return t, unavailable("get task", err)
	}
	return t, nil
}

// SetTaskEnabled flips the enabled flag; disabled tasks are never selected.
func (d *DB) SetTaskEnabled(ctx context.Context, handle string, dataType model.DataType, enabled bool, now time.Time) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE tasks SET enabled = ?, updated_at = ? WHERE handle = ? AND data_type = ?`,
		enabled, now, handle, dataType)
	if err != nil {
		return unavailable("set task enabled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s/%s: %w", handle, dataType, ErrNotFound)
	}
	return nil
}

// ListTasks returns all tasks, ordered by handle then data type.
func (d *DB) ListTasks(ctx context.Context) ([]model.Task, error) {
	query, args, err := builder.Select("*").From("tasks").
		OrderBy("handle", "data_type").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tasks query: %w", err)
	}
	var out []model.Task
	if err := d.sql.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, unavailable("list tasks", err)
	}
	return out, nil
}

// EligibleTasks returns tasks that may run now: enabled, not already running,
// past (or without) their next-eligible timestamp, and matching the tier
// filter unless it is TierAll.
func (d *DB) EligibleTasks(ctx context.Context, tier model.Tier, now time.Time) ([]model.Task, error) {
	q := builder.Select("*").From("tasks").
		Where(sq.Eq{"enabled": true}).
		Where(sq.NotEq{"status": model.StatusRunning}).
		Where(sq.Or{
			sq.Eq{"next_run_at": nil},
			sq.LtOrEq{"next_run_at": now.UTC()},
		}).
		OrderBy("handle", "data_type")
	if tier != model.TierAll && tier != "" {
		q = q.Where(sq.Eq{"tier": tier})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build eligible query: %w", err)
	}
	var out []model.Task
	if err := d.sql.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, unavailable("eligible tasks", err)
	}
	return out, nil
}

// MarkTaskRunning flips a task to running and stamps last_run_at, so a crash
// mid-run leaves the task visibly running.
func (d *DB) MarkTaskRunning(ctx context.Context, taskID int64, now time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE tasks SET status = 'running', last_run_at = ?, updated_at = ? WHERE id = ?`,
		now, now, taskID)
	if err != nil {
		return unavailable("mark running", err)
	}
	return nil
}

// CompleteTask flips a task to completed and persists the refreshed schedule
// state in the same statement, so status and schedule never disagree. nextRun
// is stored in UTC; the driver encodes timestamps as text, and mixed zone
// offsets would break the <= comparison in EligibleTasks.
func (d *DB) CompleteTask(ctx context.Context, taskID int64, tier model.Tier, ratePerDay float64, lastTotal int, nextRun time.Time, now time.Time) error {
	_, err := d.sql.ExecContext(ctx, `
		UPDATE tasks SET status = 'completed', error = '', tier = ?, rate_per_day = ?,
			last_total = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		tier, ratePerDay, lastTotal, nextRun.UTC(), now, taskID)
	if err != nil {
		return unavailable("complete task", err)
	}
	return nil
}

// FailTask flips a task to failed, preserving the error text verbatim.
// next_run_at is left alone: failed tasks retry on the next eligible cycle.
func (d *DB) FailTask(ctx context.Context, taskID int64, errMsg string, now time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE tasks SET status = 'failed', error = ?, updated_at = ? WHERE id = ?`,
		errMsg, now, taskID)
	if err != nil {
		return unavailable("fail task", err)
	}
	return nil
}

// StaleRunningTasks lists tasks stuck in running status longer than maxAge.
// They are reported, never reset: the original run may still be in flight.
func (d *DB) StaleRunningTasks(ctx context.Context, maxAge time.Duration, now time.Time) ([]model.Task, error) {
	cutoff := now.UTC().Add(-maxAge)
	query, args, err := builder.Select("*").From("tasks").
		Where(sq.Eq{"status": model.StatusRunning}).
		Where(sq.LtOrEq{"last_run_at": cutoff}).
		OrderBy("last_run_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stale query: %w", err)
	}
	var out []model.Task
	if err := d.sql.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, unavailable("stale tasks", err)
	}
	return out, nil
}
