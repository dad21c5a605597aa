package collect

import (
	"strconv"
	"strings"
	"time"

	"rookery/internal/util"
)

// RawRecord is the tagged union a Collector produces. Exactly one arm is set.
// Untyped maps never travel past this package: Normalize* funnels the wire's
// string-keyed shape into these explicit fields.
type RawRecord struct {
	Post    *RawPost
	Profile *RawProfile
}

// ID returns the record's unique identifier, or "" when the record is unusable.
func (r RawRecord) ID() string {
	switch {
	case r.Post != nil:
		return r.Post.ID
	case r.Profile != nil:
		if r.Profile.PlatformID != "" {
			return r.Profile.PlatformID
		}
		return r.Profile.Handle
	}
	return ""
}

// RawPost is one scraped content item before merge.
type RawPost struct {
	ID           string
	AuthorHandle string
	AuthorName   string
	Text         string
	Language     string
	IsReply      bool
	Views        int64
	Replies      int64
	Reposts      int64
	Quotes       int64
	Favorites    int64
	Bookmarks    int64
	PublishedAt  time.Time
	URL          string
	Hashtags     []string
	MediaURLs    []string
}

// RawProfile is one scraped follow-listing entry before merge.
type RawProfile struct {
	PlatformID     string
	Handle         string
	Name           string
	Bio            string
	Verified       bool
	FollowersCount int
	FollowingCount int
	PostCount      int
	AvatarURL      string
}

// NormalizePost maps the wire's string-keyed post shape to a RawPost,
// accepting the alternate key spellings seen across source conventions.
func NormalizePost(m map[string]any) RawPost {
	typ := strings.ToLower(rawStr(m, "type", "kind", "item_type"))
	return RawPost{
		ID:           rawStr(m, "id", "post_id", "tweet_id"),
		AuthorHandle: strings.TrimPrefix(rawStr(m, "handle", "username", "screen_name", "author_handle"), "@"),
		AuthorName:   rawStr(m, "name", "author_name", "display_name"),
		Text:         util.NormalizeWhitespace(rawStr(m, "text", "full_text", "content")),
		Language:     rawStr(m, "lang", "language"),
		IsReply:      typ == "reply" || rawBool(m, "is_reply"),
		Views:        rawInt(m, "views", "view_count", "impressions"),
		Replies:      rawInt(m, "replies", "reply_count"),
		Reposts:      rawInt(m, "reposts", "repost_count", "retweets", "retweet_count"),
		Quotes:       rawInt(m, "quotes", "quote_count"),
		Favorites:    rawInt(m, "favorites", "favorite_count", "likes", "like_count"),
		Bookmarks:    rawInt(m, "bookmarks", "bookmark_count"),
		PublishedAt:  rawTime(m, "created_at", "published_at", "timestamp"),
		URL:          rawStr(m, "url", "post_url", "link"),
		Hashtags:     rawList(m, "hashtags", "tags"),
		MediaURLs:    rawList(m, "media", "media_urls", "images"),
	}
}

// NormalizeProfile maps the wire's string-keyed follow-listing shape to a RawProfile.
func NormalizeProfile(m map[string]any) RawProfile {
	return RawProfile{
		PlatformID:     rawStr(m, "user_id", "id", "platform_id"),
		Handle:         strings.TrimPrefix(rawStr(m, "handle", "username", "screen_name"), "@"),
		Name:           rawStr(m, "name", "display_name"),
		Bio:            util.NormalizeWhitespace(rawStr(m, "bio", "description")),
		Verified:       rawBool(m, "verified", "is_verified"),
		FollowersCount: int(rawInt(m, "followers", "followers_count")),
		FollowingCount: int(rawInt(m, "following", "following_count")),
		PostCount:      int(rawInt(m, "posts", "post_count", "tweet_count")),
		AvatarURL:      rawStr(m, "avatar", "avatar_url", "profile_image_url"),
	}
}

func rawStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return strconv.FormatFloat(s, 'f', -1, 64)
			}
		}
	}
	return ""
}

func rawInt(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int64(v)
		case int:
			return int64(v)
		case int64:
			return v
		case string:
			if n, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func rawBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := m[k].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return false
}

func rawTime(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if ts, err := time.Parse(layout, v); err == nil {
					return ts.UTC()
				}
			}
		case float64:
			return time.Unix(int64(v), 0).UTC()
		}
	}
	return time.Time{}
}

func rawList(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case []string:
			return v
		case string:
			if v != "" {
				return strings.Split(v, ",")
			}
		}
	}
	return nil
}
