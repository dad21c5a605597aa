package merge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rookery/internal/collect"
	"rookery/internal/model"
	"rookery/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func rawPosts(ids ...string) []collect.RawRecord {
	out := make([]collect.RawRecord, 0, len(ids))
	for _, id := range ids {
		p := collect.RawPost{ID: id, Text: "post " + id, PublishedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
		out = append(out, collect.RawRecord{Post: &p})
	}
	return out
}

func TestMergeIdempotent(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := rawPosts("1", "2", "3")

	first, err := m.Merge(ctx, "alice", model.DataPosts, batch, now)
	require.NoError(t, err)
	assert.Equal(t, model.MergeResult{Total: 3, New: 3}, first)

	second, err := m.Merge(ctx, "alice", model.DataPosts, batch, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.MergeResult{Total: 3, Updated: 3}, second)

	u, err := db.GetUserByHandle(ctx, "alice")
	require.NoError(t, err)
	n, err := db.CountPostsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMergeStoreUnavailable(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	m := New(db)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err = m.Merge(context.Background(), "alice", model.DataPosts, rawPosts("1"), now)
	var me *MergeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "alice", me.Handle)
	assert.Equal(t, model.DataPosts, me.DataType)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	// follow merges carry the same typed error
	p := collect.RawProfile{Handle: "bob"}
	_, err = m.Merge(context.Background(), "alice", model.DataFollowers, []collect.RawRecord{{Profile: &p}}, now)
	require.ErrorAs(t, err, &me)
	assert.Equal(t, model.DataFollowers, me.DataType)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestMergeDedupKeepsLatestText(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	one := collect.RawPost{ID: "7", Text: "draft", PublishedAt: now}
	_, err := m.Merge(ctx, "alice", model.DataPosts, []collect.RawRecord{{Post: &one}}, now)
	require.NoError(t, err)

	two := collect.RawPost{ID: "7", Text: "edited", PublishedAt: now}
	res, err := m.Merge(ctx, "alice", model.DataPosts, []collect.RawRecord{{Post: &two}}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	u, err := db.GetUserByHandle(ctx, "alice")
	require.NoError(t, err)
	n, err := db.CountPostsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMergePartialInvalidBatch(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := rawPosts("1", "2", "3")
	empty1 := collect.RawPost{Text: "no id"}
	empty2 := collect.RawPost{Text: "also no id"}
	batch = append(batch, collect.RawRecord{Post: &empty1}, collect.RawRecord{Post: &empty2})

	res, err := m.Merge(ctx, "alice", model.DataPosts, batch, now)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Discarded)
}

func TestMergeAllInvalidIsZeroResult(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p := collect.RawPost{Text: "no id"}
	res, err := m.Merge(ctx, "alice", model.DataPosts, []collect.RawRecord{{Post: &p}}, now)
	require.NoError(t, err)
	assert.Equal(t, model.MergeResult{Discarded: 1}, res)

	// the store was never touched: no owner row created
	_, err = db.GetUserByHandle(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMergeRepliesThreading(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, reply bool) collect.RawRecord {
		p := collect.RawPost{ID: id, IsReply: reply, PublishedAt: now}
		return collect.RawRecord{Post: &p}
	}
	batch := []collect.RawRecord{mk("1", false), mk("2", true), mk("3", true), mk("4", false)}
	_, err := m.Merge(ctx, "alice", model.DataReplies, batch, now)
	require.NoError(t, err)

	// rows landed with the inferred links intact
	ids, err := db.ExistingPostIDs(ctx, []string{"1", "2", "3", "4"})
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestMergeFollowEdgeUniqueness(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p := collect.RawProfile{Handle: "bob", PlatformID: "u42", Name: "Bob"}
	batch := []collect.RawRecord{{Profile: &p}}

	first, err := m.Merge(ctx, "alice", model.DataFollowers, batch, now)
	require.NoError(t, err)
	assert.Equal(t, model.MergeResult{Total: 1, New: 1}, first)

	second, err := m.Merge(ctx, "alice", model.DataFollowers, batch, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.MergeResult{Total: 1, Updated: 1}, second)

	alice, err := db.GetUserByHandle(ctx, "alice")
	require.NoError(t, err)
	bob, err := db.GetUserByHandle(ctx, "bob")
	require.NoError(t, err)

	// follower direction: bob -> alice, exactly one row
	n, err := db.CountEdges(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sources, err := db.ExistingEdgeSources(ctx, alice.ID, []int64{bob.ID})
	require.NoError(t, err)
	assert.True(t, sources[bob.ID])
}

func TestMergeFollowingDirection(t *testing.T) {
	db := testDB(t)
	m := New(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p := collect.RawProfile{Handle: "carol", PlatformID: "u7"}
	_, err := m.Merge(ctx, "alice", model.DataFollowing, []collect.RawRecord{{Profile: &p}}, now)
	require.NoError(t, err)

	alice, err := db.GetUserByHandle(ctx, "alice")
	require.NoError(t, err)
	n, err := db.CountEdges(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
