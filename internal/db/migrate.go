// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations. Entries are
// append-only; applied versions are checksum-verified on every start.
var migrations = []Migration{
	{
		Version:     1,
		Description: "core bibliographic schema",
		SQL: `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE CHECK(length(username) > 0),
			is_admin INTEGER NOT NULL DEFAULT 0 CHECK(is_admin IN (0, 1)),
			created_at INTEGER NOT NULL
		);

		CREATE TABLE collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			kind INTEGER NOT NULL DEFAULT 1 CHECK(kind IN (1, 2, 3))
		);

		CREATE TABLE items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL CHECK(length(title) > 0),
			abstract TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			month INTEGER NOT NULL DEFAULT 0,
			day INTEGER NOT NULL DEFAULT 0,
			volume TEXT NOT NULL DEFAULT '',
			issue TEXT NOT NULL DEFAULT '',
			pages TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			place TEXT NOT NULL DEFAULT '',
			custom1 TEXT NOT NULL DEFAULT '',
			custom2 TEXT NOT NULL DEFAULT '',
			custom3 TEXT NOT NULL DEFAULT '',
			custom4 TEXT NOT NULL DEFAULT '',
			custom5 TEXT NOT NULL DEFAULT '',
			custom6 TEXT NOT NULL DEFAULT '',
			custom7 TEXT NOT NULL DEFAULT '',
			custom8 TEXT NOT NULL DEFAULT '',
			content_hash TEXT,
			collection_id INTEGER REFERENCES collections(id),
			added_by INTEGER NOT NULL REFERENCES users(id),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL CHECK(updated_at >= created_at)
		);

		CREATE TABLE creators (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE CHECK(length(name) > 0)
		);

		CREATE TABLE item_creators (
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			creator_id INTEGER NOT NULL REFERENCES creators(id),
			role INTEGER NOT NULL CHECK(role IN (1, 2)),
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (item_id, creator_id, role)
		);

		CREATE TABLE keywords (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE CHECK(length(name) > 0)
		);

		CREATE TABLE item_keywords (
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			keyword_id INTEGER NOT NULL REFERENCES keywords(id),
			PRIMARY KEY (item_id, keyword_id)
		);

		CREATE TABLE tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE CHECK(length(name) > 0),
			color TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE item_tags (
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (item_id, tag_id)
		);

		CREATE INDEX idx_items_year ON items(year);
		CREATE INDEX idx_item_creators_creator ON item_creators(creator_id, role);
		CREATE INDEX idx_item_keywords_keyword ON item_keywords(keyword_id);
		CREATE INDEX idx_item_tags_tag ON item_tags(tag_id);
		`,
	},
	{
		Version:     2,
		Description: "search index shadow table",
		SQL: `
		CREATE TABLE search_index (
			item_id INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '',
			editors TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			collection TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			place TEXT NOT NULL DEFAULT '',
			custom1 TEXT NOT NULL DEFAULT '',
			custom2 TEXT NOT NULL DEFAULT '',
			custom3 TEXT NOT NULL DEFAULT '',
			custom4 TEXT NOT NULL DEFAULT '',
			custom5 TEXT NOT NULL DEFAULT '',
			custom6 TEXT NOT NULL DEFAULT '',
			custom7 TEXT NOT NULL DEFAULT '',
			custom8 TEXT NOT NULL DEFAULT '',
			full_text TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE stats (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		`,
	},
	{
		Version:     3,
		Description: "projects, memberships, notes, annotations",
		SQL: `
		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL CHECK(length(name) > 0),
			created_by INTEGER NOT NULL REFERENCES users(id),
			created_at INTEGER NOT NULL
		);

		CREATE TABLE project_users (
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			PRIMARY KEY (project_id, user_id)
		);

		CREATE TABLE project_items (
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			PRIMARY KEY (project_id, item_id)
		);

		CREATE TABLE clipboard (
			user_id INTEGER NOT NULL REFERENCES users(id),
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, item_id)
		);

		CREATE TABLE notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			body TEXT NOT NULL,
			body_plain TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE annotations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			page INTEGER NOT NULL DEFAULT 0,
			body TEXT NOT NULL,
			body_plain TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE INDEX idx_notes_item ON notes(item_id);
		CREATE INDEX idx_annotations_item ON annotations(item_id);
		`,
	},
	{
		Version:     4,
		Description: "bulk mutation change log",
		SQL: `
		CREATE TABLE change_log (
			id TEXT PRIMARY KEY CHECK(length(id) = 36),
			action TEXT NOT NULL CHECK(length(action) > 0),
			actor_id INTEGER NOT NULL,
			owner_id INTEGER NOT NULL DEFAULT 0,
			item_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Migrate applies all pending migrations in order. Already-applied
// versions are verified against their recorded checksum and rejected on
// mismatch: migration SQL must never be edited after release.
func (m *Migrator) Migrate() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		sum := checksum(mig.SQL)

		if mig.Version <= current {
			var recorded string
			err := m.db.QueryRow("SELECT checksum FROM schema_migrations WHERE version = ?", mig.Version).Scan(&recorded)
			if err != nil {
				return fmt.Errorf("failed to read migration %d: %w", mig.Version, err)
			}
			if recorded != sum {
				return fmt.Errorf("migration %d checksum mismatch: schema has diverged", mig.Version)
			}
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(mig.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.Version, time.Now().Unix(), mig.Description, sum,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
