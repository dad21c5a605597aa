package model

import "time"

// DataType tags what a task collects for an entity.
type DataType string

const (
	DataPosts     DataType = "posts"
	DataReplies   DataType = "replies"
	DataFollowers DataType = "followers"
	DataFollowing DataType = "following"
)

// ValidDataType reports whether s names a known data type.
func ValidDataType(s string) bool {
	switch DataType(s) {
	case DataPosts, DataReplies, DataFollowers, DataFollowing:
		return true
	}
	return false
}

// IsFollowType reports whether the data type yields follow edges rather than posts.
func (d DataType) IsFollowType() bool { return d == DataFollowers || d == DataFollowing }

// User represents a tracked profile. Handle is the lookup key until the
// platform id is learned; handles can change, platform ids cannot.
type User struct {
	ID             int64     `db:"id"`
	PlatformID     string    `db:"platform_id"`
	Handle         string    `db:"handle"`
	Name           string    `db:"name"`
	Bio            string    `db:"bio"`
	Location       string    `db:"location"`
	Website        string    `db:"website"`
	Verified       bool      `db:"verified"`
	FollowersCount int       `db:"followers_count"`
	FollowingCount int       `db:"following_count"`
	PostCount      int       `db:"post_count"`
	AvatarURL      string    `db:"avatar_url"`
	BannerURL      string    `db:"banner_url"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Post represents a single content item. PostID is the platform's id and the
// dedup key; re-ingestion updates counters and text in place, never duplicates.
type Post struct {
	ID             int64     `db:"id"`
	PostID         string    `db:"post_id"`
	UserID         int64     `db:"user_id"`
	ParentPostID   *string   `db:"parent_post_id"`
	ConversationID *string   `db:"conversation_id"`
	Text           string    `db:"text"`
	Language       string    `db:"language"`
	IsReply        bool      `db:"is_reply"`
	Views          int64     `db:"views"`
	Replies        int64     `db:"replies"`
	Reposts        int64     `db:"reposts"`
	Quotes         int64     `db:"quotes"`
	Favorites      int64     `db:"favorites"`
	Bookmarks      int64     `db:"bookmarks"`
	PublishedAt    time.Time `db:"published_at"`
	SourceURL      string    `db:"source_url"`
	Hashtags       string    `db:"hashtags"`
	MediaURLs      string    `db:"media_urls"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// FollowEdge is a directed "source follows target" relationship.
// The (source, target) pair is unique; edges carry no mutable state.
type FollowEdge struct {
	ID        int64     `db:"id"`
	SourceID  int64     `db:"source_id"`
	TargetID  int64     `db:"target_id"`
	CreatedAt time.Time `db:"created_at"`
}

// TaskStatus is the lifecycle state of a scheduled collection obligation.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Task is one scheduled (entity, data-type) collection obligation.
// Completed and failed tasks become eligible again once NextRunAt elapses.
type Task struct {
	ID         int64      `db:"id"`
	Handle     string     `db:"handle"`
	DataType   DataType   `db:"data_type"`
	MaxCount   int        `db:"max_count"`
	Enabled    bool       `db:"enabled"`
	Status     TaskStatus `db:"status"`
	LastRunAt  *time.Time `db:"last_run_at"`
	NextRunAt  *time.Time `db:"next_run_at"`
	Error      string     `db:"error"`
	Tier       Tier       `db:"tier"`
	RatePerDay float64    `db:"rate_per_day"`
	LastTotal  int        `db:"last_total"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// MergeResult reports one merge invocation.
type MergeResult struct {
	Total     int
	New       int
	Updated   int
	Discarded int
}

// TaskOutcome is the per-task line of a batch report.
type TaskOutcome struct {
	Handle   string
	DataType DataType
	Status   TaskStatus
	Result   MergeResult
	Err      string
	Duration time.Duration
}

// BatchReport summarizes one scheduling cycle.
type BatchReport struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcomes     []TaskOutcome
	SuccessCount int
	ErrorCount   int
	NewRecords   int
}
