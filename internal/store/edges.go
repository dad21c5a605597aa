package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"rookery/internal/model"
)

// InsertFollowEdges writes edges in chunks with insert-if-absent semantics.
// Edges carry no mutable state, so conflicts are ignored outright.
func (d *DB) InsertFollowEdges(ctx context.Context, edges []model.FollowEdge, now time.Time) error {
	for start := 0; start < len(edges); start += d.chunk {
		end := start + d.chunk
		if end > len(edges) {
			end = len(edges)
		}
		ins := builder.Insert("follow_edges").Columns("source_id", "target_id", "created_at").
			Suffix(`ON CONFLICT(source_id, target_id) DO NOTHING`)
		for _, e := range edges[start:end] {
			ins = ins.Values(e.SourceID, e.TargetID, now)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build edge insert: %w", err)
		}
		if _, err := d.sql.ExecContext(ctx, query, args...); err != nil {
			return unavailable("insert edges", err)
		}
	}
	return nil
}

// ExistingEdgeTargets returns which of targetIDs already have an edge from sourceID.
func (d *DB) ExistingEdgeTargets(ctx context.Context, sourceID int64, targetIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(targetIDs))
	for start := 0; start < len(targetIDs); start += d.chunk {
		end := start + d.chunk
		if end > len(targetIDs) {
			end = len(targetIDs)
		}
		query, args, err := builder.Select("target_id").From("follow_edges").
			Where(sq.Eq{"source_id": sourceID, "target_id": targetIDs[start:end]}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build edge query: %w", err)
		}
		var found []int64
		if err := d.sql.SelectContext(ctx, &found, query, args...); err != nil {
			return nil, unavailable("existing edges", err)
		}
		for _, id := range found {
			out[id] = true
		}
	}
	return out, nil
}

// ExistingEdgeSources returns which of sourceIDs already have an edge to targetID.
func (d *DB) ExistingEdgeSources(ctx context.Context, targetID int64, sourceIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(sourceIDs))
	for start := 0; start < len(sourceIDs); start += d.chunk {
		end := start + d.chunk
		if end > len(sourceIDs) {
			end = len(sourceIDs)
		}
		query, args, err := builder.Select("source_id").From("follow_edges").
			Where(sq.Eq{"target_id": targetID, "source_id": sourceIDs[start:end]}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build edge query: %w", err)
		}
		var found []int64
		if err := d.sql.SelectContext(ctx, &found, query, args...); err != nil {
			return nil, unavailable("existing edges", err)
		}
		for _, id := range found {
			out[id] = true
		}
	}
	return out, nil
}

// CountEdges returns how many follow edges originate from sourceID.
func (d *DB) CountEdges(ctx context.Context, sourceID int64) (int, error) {
	query, args, err := builder.Select("COUNT(*)").From("follow_edges").
		Where(sq.Eq{"source_id": sourceID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build edge count query: %w", err)
	}
	var n int
	if err := d.sql.GetContext(ctx, &n, query, args...); err != nil {
		return 0, unavailable("count edges", err)
	}
	return n, nil
}
