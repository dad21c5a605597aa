package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"rookery/internal/model"
)

const postConflict = `ON CONFLICT(post_id) DO UPDATE SET
	parent_post_id = COALESCE(excluded.parent_post_id, posts.parent_post_id),
	conversation_id = COALESCE(excluded.conversation_id, posts.conversation_id),
	text = excluded.text,
	language = excluded.language,
	is_reply = excluded.is_reply,
	views = excluded.views,
	replies = excluded.replies,
	reposts = excluded.reposts,
	quotes = excluded.quotes,
	favorites = excluded.favorites,
	bookmarks = excluded.bookmarks,
	source_url = excluded.source_url,
	hashtags = excluded.hashtags,
	media_urls = excluded.media_urls,
	updated_at = excluded.updated_at`

// UpsertPosts writes posts in fixed-size chunks, inserting new rows and
// refreshing mutable fields on post_id conflict. Chunks already written stay
// written if a later chunk fails; the write is idempotent, so a retry
// converges to the same end state.
func (d *DB) UpsertPosts(ctx context.Context, posts []model.Post, now time.Time) error {
	for start := 0; start < len(posts); start += d.chunk {
		end := start + d.chunk
		if end > len(posts) {
			end = len(posts)
		}
		ins := builder.Insert("posts").Columns(
			"post_id", "user_id", "parent_post_id", "conversation_id", "text",
			"language", "is_reply", "views", "replies", "reposts", "quotes",
			"favorites", "bookmarks", "published_at", "source_url", "hashtags",
			"media_urls", "created_at", "updated_at",
		).Suffix(postConflict)
		for _, p := range posts[start:end] {
			ins = ins.Values(
				p.PostID, p.UserID, p.ParentPostID, p.ConversationID, p.Text,
				p.Language, p.IsReply, p.Views, p.Replies, p.Reposts, p.Quotes,
				p.Favorites, p.Bookmarks, p.PublishedAt, p.SourceURL, p.Hashtags,
				p.MediaURLs, now, now,
			)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build post upsert: %w", err)
		}
		if _, err := d.sql.ExecContext(ctx, query, args...); err != nil {
			return unavailable("upsert posts", err)
		}
	}
	return nil
}

// ExistingPostIDs returns which of ids are already stored. Lookups are chunked
// so the id list never outgrows a single statement.
func (d *DB) ExistingPostIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += d.chunk {
		end := start + d.chunk
		if end > len(ids) {
			end = len(ids)
		}
		query, args, err := builder.Select("post_id").From("posts").
			Where(sq.Eq{"post_id": ids[start:end]}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build post id query: %w", err)
		}
		var found []string
		if err := d.sql.SelectContext(ctx, &found, query, args...); err != nil {
			return nil, unavailable("existing post ids", err)
		}
		for _, id := range found {
			out[id] = true
		}
	}
	return out, nil
}

// CountPostsByUser returns the number of stored posts owned by userID.
func (d *DB) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	query, args, err := builder.Select("COUNT(*)").From("posts").
		Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build post count query: %w", err)
	}
	var n int
	if err := d.sql.GetContext(ctx, &n, query, args...); err != nil {
		return 0, unavailable("count posts", err)
	}
	return n, nil
}
