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

// GetUserByHandle returns the user row for handle, or ErrNotFound.
func (d *DB) GetUserByHandle(ctx context.Context, handle string) (model.User, error) {
	var u model.User
	query, args, err := builder.Select("*").From("users").Where(sq.Eq{"handle": handle}).ToSql()
	if err != nil {
		return u, fmt.Errorf("build user query: %w", err)
	}
	if err := d.sql.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, fmt.Errorf("user %q: %w", handle, ErrNotFound)
		}
		return u, unavailable("get user", err)
	}
	return u, nil
}

// GetUserByPlatformID returns the user row for a platform id, or ErrNotFound.
func (d *DB) GetUserByPlatformID(ctx context.Context, platformID string) (model.User, error) {
	var u model.User
	query, args, err := builder.Select("*").From("users").Where(sq.Eq{"platform_id": platformID}).ToSql()
	if err != nil {
		return u, fmt.Errorf("build user query: %w", err)
	}
	if err := d.sql.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, fmt.Errorf("platform id %q: %w", platformID, ErrNotFound)
		}
		return u, unavailable("get user", err)
	}
	return u, nil
}

// EnsureUser creates a minimal row for handle if absent and returns the row.
func (d *DB) EnsureUser(ctx context.Context, handle string, now time.Time) (model.User, error) {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO users (handle, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(handle) DO NOTHING`, handle, now, now)
	if err != nil {
		return model.User{}, unavailable("ensure user", err)
	}
	return d.GetUserByHandle(ctx, handle)
}

// UpsertUser writes the best-available snapshot of a profile. The handle is
// the conflict key until a platform id is known; when an incoming platform id
// matches an existing row under a different handle, the row is renamed rather
// than duplicated (handles change, platform ids do not). Empty text fields and
// zero counters never overwrite previously observed values.
func (d *DB) UpsertUser(ctx context.Context, u model.User, now time.Time) (model.User, error) {
	if u.PlatformID != "" {
		prev, err := d.GetUserByPlatformID(ctx, u.PlatformID)
		if err == nil && prev.Handle != u.Handle {
			// another row may still hold the incoming handle (two accounts
			// swapping handles); it vacates to a placeholder and gets its
			// real name back on its own next sighting
			if _, err := d.sql.ExecContext(ctx,
				`UPDATE users SET handle = '~' || id, updated_at = ? WHERE handle = ? AND id != ?`,
				now, u.Handle, prev.ID); err != nil {
				return model.User{}, unavailable("displace user", err)
			}
			if _, err := d.sql.ExecContext(ctx,
				`UPDATE users SET handle = ?, updated_at = ? WHERE id = ?`,
				u.Handle, now, prev.ID); err != nil {
				return model.User{}, unavailable("rename user", err)
			}
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return model.User{}, err
		}
	}
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO users (platform_id, handle, name, bio, location, website, verified,
			followers_count, following_count, post_count, avatar_url, banner_url,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			platform_id = CASE WHEN excluded.platform_id != '' THEN excluded.platform_id ELSE users.platform_id END,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END,
			bio = CASE WHEN excluded.bio != '' THEN excluded.bio ELSE users.bio END,
			location = CASE WHEN excluded.location != '' THEN excluded.location ELSE users.location END,
			website = CASE WHEN excluded.website != '' THEN excluded.website ELSE users.website END,
			verified = excluded.verified,
			followers_count = CASE WHEN excluded.followers_count > 0 THEN excluded.followers_count ELSE users.followers_count END,
			following_count = CASE WHEN excluded.following_count > 0 THEN excluded.following_count ELSE users.following_count END,
			post_count = CASE WHEN excluded.post_count > 0 THEN excluded.post_count ELSE users.post_count END,
			avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE users.avatar_url END,
			banner_url = CASE WHEN excluded.banner_url != '' THEN excluded.banner_url ELSE users.banner_url END,
			updated_at = excluded.updated_at`,
		u.PlatformID, u.Handle, u.Name, u.Bio, u.Location, u.Website, u.Verified,
		u.FollowersCount, u.FollowingCount, u.PostCount, u.AvatarURL, u.BannerURL,
		now, now)
	if err != nil {
		return model.User{}, unavailable("upsert user", err)
	}
	return d.GetUserByHandle(ctx, u.Handle)
}

// ListUsers returns all tracked users ordered by handle.
func (d *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	query, args, err := builder.Select("*").From("users").OrderBy("handle").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}
	var out []model.User
	if err := d.sql.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, unavailable("list users", err)
	}
	return out, nil
}
