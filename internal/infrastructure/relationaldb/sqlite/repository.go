// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ersonp/forklore-core/internal/domain/ports"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

var _ ports.RelationalDB = (*Repository)(nil)

// timeNow returns the current time (can be mocked in tests).
var timeNow = func() time.Time {
	return time.Now().UTC()
}

// memoryPath is the special path for a private in-memory database.
const memoryPath = ":memory:"

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
// Pragmas are passed in the DSN so that every pooled connection gets them,
// and write transactions take the write lock at BEGIN.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = config.DefaultBusyTimeoutMS
	}

	db, err := sql.Open("sqlite", dsn(cfg.Path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if cfg.Path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// dsn builds the connection string for path.
func dsn(path string, busyTimeoutMS int) string {
	pragmas := fmt.Sprintf(
		"_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate&_time_format=sqlite",
		busyTimeoutMS,
	)
	if path == memoryPath {
		return "file::memory:?" + pragmas
	}
	return "file:" + path + "?mode=rwc&_pragma=journal_mode(WAL)&" + pragmas
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Works (root creative properties)
	CREATE TABLE IF NOT EXISTS works (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author_id TEXT NOT NULL,
		view_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		branch_count INTEGER NOT NULL DEFAULT 0,
		linked_branch_count INTEGER NOT NULL DEFAULT 0 CHECK (linked_branch_count >= 0),
		allow_branching INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_works_author ON works(author_id);

	-- Branches (fork graph nodes)
	CREATE TABLE IF NOT EXISTS branches (
		id TEXT PRIMARY KEY,
		work_id TEXT NOT NULL REFERENCES works(id),
		parent_id TEXT REFERENCES branches(id),
		fork_point_chapter INTEGER,
		kind TEXT NOT NULL,
		canon_status TEXT NOT NULL,
		visibility TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL,
		vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
		vote_threshold INTEGER NOT NULL CHECK (vote_threshold >= 1),
		chapter_count INTEGER NOT NULL DEFAULT 0 CHECK (chapter_count >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP,
		CHECK ((parent_id IS NULL) = (fork_point_chapter IS NULL)),
		CHECK ((parent_id IS NULL) = (kind = 'MAIN')),
		CHECK (kind != 'MAIN' OR canon_status = 'MERGED'),
		CHECK (fork_point_chapter IS NULL OR fork_point_chapter >= 1)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_branches_root ON branches(work_id) WHERE parent_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_branches_rank ON branches(work_id, vote_count DESC, created_at);
	CREATE INDEX IF NOT EXISTS idx_branches_fork ON branches(parent_id, fork_point_chapter, author_id, created_at);

	-- Votes (one row per user and branch)
	CREATE TABLE IF NOT EXISTS votes (
		user_id TEXT NOT NULL,
		branch_id TEXT NOT NULL REFERENCES branches(id),
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, branch_id)
	);
	CREATE INDEX IF NOT EXISTS idx_votes_branch ON votes(branch_id);

	-- Wiki entries (named world knowledge per branch)
	CREATE TABLE IF NOT EXISTS wiki_entries (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL REFERENCES branches(id),
		name TEXT NOT NULL,
		first_appearance INTEGER,
		image_url TEXT NOT NULL DEFAULT '',
		hidden_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(branch_id, name)
	);

	-- Wiki snapshots (append-only, chapter-stamped revisions)
	CREATE TABLE IF NOT EXISTS wiki_snapshots (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES wiki_entries(id),
		content TEXT NOT NULL,
		valid_from_chapter INTEGER NOT NULL CHECK (valid_from_chapter >= 0),
		contributor TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(entry_id, valid_from_chapter)
	);

	-- Tag definitions and entry tags
	CREATE TABLE IF NOT EXISTS wiki_tags (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL REFERENCES branches(id),
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		display_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(branch_id, name)
	);
	CREATE TABLE IF NOT EXISTS wiki_entry_tags (
		entry_id TEXT NOT NULL REFERENCES wiki_entries(id),
		tag_id TEXT NOT NULL REFERENCES wiki_tags(id),
		PRIMARY KEY (entry_id, tag_id)
	);
	CREATE INDEX IF NOT EXISTS idx_wiki_entry_tags_tag ON wiki_entry_tags(tag_id);

	-- Link requests (asks to link a branch into canon)
	CREATE TABLE IF NOT EXISTS link_requests (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL REFERENCES branches(id),
		work_id TEXT NOT NULL REFERENCES works(id),
		requester_id TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reviewer_id TEXT,
		review_comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		reviewed_at TIMESTAMP
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_link_requests_pending ON link_requests(branch_id) WHERE status = 'PENDING';
	CREATE INDEX IF NOT EXISTS idx_link_requests_work ON link_requests(work_id, status, created_at);

	-- Reading progress (highest chapter read per user and work)
	CREATE TABLE IF NOT EXISTS reading_progress (
		user_id TEXT NOT NULL,
		work_id TEXT NOT NULL REFERENCES works(id),
		chapter INTEGER NOT NULL CHECK (chapter >= 0),
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, work_id)
	);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		actor_id TEXT,
		subject_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a write transaction and commits if fn succeeds.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isConstraintError reports whether err is a uniqueness violation.
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt converts a nil pointer to NULL.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// intPtr converts a nullable column back to a pointer.
func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
