package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN. SQLite allows one writer
// at a time, so the pool is pinned to a single connection; this also keeps
// ":memory:" databases shared across queries.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate creates the relaychat schema. Timestamps are stored as unix
// nanoseconds in INTEGER columns.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS friendships (
			low_identity  TEXT NOT NULL,
			high_identity TEXT NOT NULL,
			low_alias     TEXT DEFAULT NULL,
			high_alias    TEXT DEFAULT NULL,
			created_at    INTEGER NOT NULL,
			PRIMARY KEY (low_identity, high_identity),
			CHECK (low_identity < high_identity)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			from_identity TEXT NOT NULL,
			to_identity   TEXT NOT NULL,
			text          TEXT DEFAULT NULL,
			file_ref      TEXT DEFAULT NULL,
			flagged       INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			read_at       INTEGER DEFAULT NULL,
			CHECK (text IS NOT NULL OR file_ref IS NOT NULL)
		);`,
		`CREATE TABLE IF NOT EXISTS critical_words (
			word TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS flagged_conversations (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			pair_low        TEXT NOT NULL,
			pair_high       TEXT NOT NULL,
			matched_word    TEXT NOT NULL,
			message_id      INTEGER NOT NULL,
			message_text    TEXT NOT NULL,
			context_snippet TEXT NOT NULL,
			flagged_at      INTEGER NOT NULL,
			reviewed        INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS temp_files (
			id            TEXT PRIMARY KEY,
			from_identity TEXT NOT NULL,
			to_identity   TEXT NOT NULL,
			name          TEXT NOT NULL,
			size          INTEGER NOT NULL,
			mime_type     TEXT NOT NULL,
			blob_locator  TEXT NOT NULL,
			expires_at    INTEGER NOT NULL,
			downloaded    INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			identity   TEXT PRIMARY KEY,
			tier       TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(from_identity, to_identity, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender_created ON messages(from_identity, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(to_identity, from_identity) WHERE read_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_flagged_unreviewed ON flagged_conversations(reviewed, flagged_at);`,
		`CREATE INDEX IF NOT EXISTS idx_temp_files_expires ON temp_files(expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
