package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rookery/internal/collect"
	"rookery/internal/logging"
	"rookery/internal/model"
	"rookery/internal/store"
)

// MergeError marks a store failure during ingestion, carrying the entity and
// data type it happened for. Chunks written before the failure stay written;
// the upsert is idempotent, so a retry converges.
type MergeError struct {
	Handle   string
	DataType model.DataType
	Err      error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s/%s: %v", e.Handle, e.DataType, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// Merger reconciles freshly scraped raw records into the entity store.
type Merger struct {
	db *store.DB
}

func New(db *store.DB) *Merger { return &Merger{db: db} }

// Merge classifies and upserts one batch for (handle, dataType). Records
// without a usable unique id are discarded and counted, never fatal; an
// all-invalid batch is a valid zero result, distinct from a collection
// failure. Classification into new/updated is for reporting only; the write
// is always a blind upsert and is never suppressed by it.
func (m *Merger) Merge(ctx context.Context, handle string, dataType model.DataType, records []collect.RawRecord, now time.Time) (model.MergeResult, error) {
	var res model.MergeResult
	if dataType.IsFollowType() {
		profiles := validProfiles(records)
		res.Discarded = len(records) - len(profiles)
		if res.Discarded > 0 {
			logging.L().Infow("discarded invalid records", "handle", handle, "data_type", dataType, "count", res.Discarded)
		}
		if len(profiles) == 0 {
			return res, nil
		}
		return m.mergeFollows(ctx, handle, dataType, profiles, now, res)
	}

	posts := validPosts(records)
	res.Discarded = len(records) - len(posts)
	if res.Discarded > 0 {
		logging.L().Infow("discarded invalid records", "handle", handle, "data_type", dataType, "count", res.Discarded)
	}
	if len(posts) == 0 {
		return res, nil
	}
	return m.mergePosts(ctx, handle, dataType, posts, now, res)
}

func (m *Merger) mergePosts(ctx context.Context, handle string, dataType model.DataType, posts []collect.RawPost, now time.Time, res model.MergeResult) (model.MergeResult, error) {
	// Reply listings approximate thread order, so threading is reconstructed
	// from adjacency before anything is written.
	var links map[string]Link
	if dataType == model.DataReplies {
		links = InferReplyLinks(posts)
	}

	owner := model.User{Handle: handle, Name: posts[0].AuthorName}
	ownerRow, err := m.db.UpsertUser(ctx, owner, now)
	if err != nil {
		return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	existing, err := m.db.ExistingPostIDs(ctx, ids)
	if err != nil {
		return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
	}

	rows := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		row := model.Post{
			PostID:      p.ID,
			UserID:      ownerRow.ID,
			Text:        p.Text,
			Language:    p.Language,
			IsReply:     p.IsReply,
			Views:       p.Views,
			Replies:     p.Replies,
			Reposts:     p.Reposts,
			Quotes:      p.Quotes,
			Favorites:   p.Favorites,
			Bookmarks:   p.Bookmarks,
			PublishedAt: p.PublishedAt,
			SourceURL:   p.URL,
			Hashtags:    strings.Join(p.Hashtags, ","),
			MediaURLs:   strings.Join(p.MediaURLs, ","),
		}
		if l, ok := links[p.ID]; ok {
			if l.ParentID != "" {
				parent := l.ParentID
				row.ParentPostID = &parent
			}
			if l.RootID != "" {
				root := l.RootID
				row.ConversationID = &root
			}
		}
		rows = append(rows, row)
		if existing[p.ID] {
			res.Updated++
		} else {
			res.New++
		}
	}
	if err := m.db.UpsertPosts(ctx, rows, now); err != nil {
		return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
	}
	res.Total = len(rows)
	return res, nil
}

func (m *Merger) mergeFollows(ctx context.Context, handle string, dataType model.DataType, profiles []collect.RawProfile, now time.Time, res model.MergeResult) (model.MergeResult, error) {
	ownerRow, err := m.db.EnsureUser(ctx, handle, now)
	if err != nil {
		return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
	}

	// Every listed profile becomes (or refreshes) a user row; the aggregate
	// counters it carries are a last-observed snapshot.
	otherIDs := make([]int64, 0, len(profiles))
	for _, p := range profiles {
		u, err := m.db.UpsertUser(ctx, model.User{
			PlatformID:     p.PlatformID,
			Handle:         p.Handle,
			Name:           p.Name,
			Bio:            p.Bio,
			Verified:       p.Verified,
			FollowersCount: p.FollowersCount,
			FollowingCount: p.FollowingCount,
			PostCount:      p.PostCount,
			AvatarURL:      p.AvatarURL,
		}, now)
		if err != nil {
			return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
		}
		otherIDs = append(otherIDs, u.ID)
	}

	var existing map[int64]bool
	if dataType == model.DataFollowing {
		existing, err = m.db.ExistingEdgeTargets(ctx, ownerRow.ID, otherIDs)
	} else {
		existing, err = m.db.ExistingEdgeSources(ctx, ownerRow.ID, otherIDs)
	}
	if err != nil {
		return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
	}

	edges := make([]model.FollowEdge, 0, len(otherIDs))
	for _, id := range otherIDs {
		if dataType == model.DataFollowing {
			edges = append(edges, model.FollowEdge{SourceID: ownerRow.ID, TargetID: id})
		} else {
			edges = append(edges, model.FollowEdge{SourceID: id, TargetID: ownerRow.ID})
		}
		if existing[id] {
			res.Updated++
		} else {
			res.New++
		}
	}
	if err := m.db.InsertFollowEdges(ctx, edges, now); err != nil {
		return res, &MergeError{Handle: handle, DataType: dataType, Err: err}
	}
	res.Total = len(edges)
	return res, nil
}

func validPosts(records []collect.RawRecord) []collect.RawPost {
	out := make([]collect.RawPost, 0, len(records))
	for _, r := range records {
		if r.Post != nil && r.Post.ID != "" {
			out = append(out, *r.Post)
		}
	}
	return out
}

func validProfiles(records []collect.RawRecord) []collect.RawProfile {
	out := make([]collect.RawProfile, 0, len(records))
	for _, r := range records {
		if r.Profile != nil && r.Profile.Handle != "" {
			out = append(out, *r.Profile)
		}
	}
	return out
}
