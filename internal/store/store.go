package store

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrUnavailable wraps store round-trip failures so callers can tell
// infrastructure faults apart from domain outcomes.
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound is returned by single-row lookups with no matching row.
var ErrNotFound = errors.New("not found")

const defaultChunk = 200

// DB is the entity store: users, posts, follow edges, and tasks in one
// embedded SQLite database.
type DB struct {
	sql   *sqlx.DB
	chunk int
}

// builder produces SQLite-flavored statements.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*DB, error) {
	d, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, unavailable("open", err)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		return nil, unavailable("pragma", err)
	}
	db := &DB{sql: d, chunk: defaultChunk}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

// SetChunkSize bounds multi-row statement size for bulk writes.
func (d *DB) SetChunkSize(n int) {
	if n > 0 {
		d.chunk = n
	}
}

func (d *DB) migrate() error {
	if _, err := d.sql.Exec(schema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
