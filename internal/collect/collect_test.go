package collect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rookery/internal/model"
)

func TestNormalizePostAlternateKeys(t *testing.T) {
	m := map[string]any{
		"tweet_id":      "991",
		"screen_name":   "@alice",
		"full_text":     "hello   \n world",
		"lang":          "en",
		"kind":          "Reply",
		"retweet_count": float64(4),
		"like_count":    "1,204",
		"created_at":    "2025-02-01T10:00:00Z",
		"tags":          []any{"go", "systems"},
	}
	p := NormalizePost(m)
	assert.Equal(t, "991", p.ID)
	assert.Equal(t, "alice", p.AuthorHandle)
	assert.Equal(t, "hello world", p.Text)
	assert.Equal(t, "en", p.Language)
	assert.True(t, p.IsReply)
	assert.Equal(t, int64(4), p.Reposts)
	assert.Equal(t, int64(1204), p.Favorites)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), p.PublishedAt)
	assert.Equal(t, []string{"go", "systems"}, p.Hashtags)
}

func TestNormalizeProfileAlternateKeys(t *testing.T) {
	m := map[string]any{
		"user_id":         "u77",
		"username":        "bob",
		"display_name":    "Bob",
		"description":     "  builds  things ",
		"is_verified":     true,
		"followers_count": float64(3200),
	}
	p := NormalizeProfile(m)
	assert.Equal(t, "u77", p.PlatformID)
	assert.Equal(t, "bob", p.Handle)
	assert.Equal(t, "Bob", p.Name)
	assert.Equal(t, "builds things", p.Bio)
	assert.True(t, p.Verified)
	assert.Equal(t, 3200, p.FollowersCount)
}

func TestRawRecordID(t *testing.T) {
	post := RawPost{ID: "1"}
	assert.Equal(t, "1", RawRecord{Post: &post}.ID())
	prof := RawProfile{Handle: "bob"}
	assert.Equal(t, "bob", RawRecord{Profile: &prof}.ID())
	prof2 := RawProfile{PlatformID: "u9", Handle: "bob"}
	assert.Equal(t, "u9", RawRecord{Profile: &prof2}.ID())
	assert.Equal(t, "", RawRecord{}.ID())
}

func TestFileCollectorReplay(t *testing.T) {
	dir := t.TempDir()
	lines := `{"id":"1","text":"first","type":"post"}
{"id":"2","text":"second","type":"reply"}
not json, skipped
{"id":"3","text":"third"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.posts.jsonl"), []byte(lines), 0o644))

	fc := &FileCollector{Dir: dir}
	recs, err := fc.Collect(context.Background(), "alice", model.DataPosts, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "1", recs[0].Post.ID)
	assert.True(t, recs[1].Post.IsReply)

	capped, err := fc.Collect(context.Background(), "alice", model.DataPosts, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestFileCollectorMissingExport(t *testing.T) {
	fc := &FileCollector{Dir: t.TempDir()}
	_, err := fc.Collect(context.Background(), "ghost", model.DataPosts, 0)
	assert.Error(t, err)
}

type slowCollector struct{}

func (slowCollector) Collect(ctx context.Context, handle string, dataType model.DataType, maxCount int) ([]RawRecord, error) {
	p := RawPost{ID: "partial"}
	<-ctx.Done()
	return []RawRecord{{Post: &p}}, ctx.Err()
}

func TestCollectTimeBoxedPartialBatch(t *testing.T) {
	s := NewSession(slowCollector{}, 100, 10)
	recs, err := CollectTimeBoxed(context.Background(), s, 20*time.Millisecond, "alice", model.DataPosts, 10)
	require.NoError(t, err, "partial records under the ceiling are a valid final batch")
	require.Len(t, recs, 1)
	assert.Equal(t, "partial", recs[0].Post.ID)
}

func TestSessionExclusive(t *testing.T) {
	s := NewSession(slowCollector{}, 100, 10)
	release, err := s.Acquire(context.Background())
	require.NoError(t, err)

	_, err = s.TryAcquire()
	assert.ErrorIs(t, err, ErrSessionBusy)

	release()
	release() // double release is harmless

	r2, err := s.TryAcquire()
	require.NoError(t, err)
	r2()
}
