package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL migration statements.
// Each entry is applied once in order. New migrations are appended at the end.
var migrations = []string{
	// Migration 0: pages and their block outlines
	`CREATE TABLE IF NOT EXISTS pages (
		path       TEXT PRIMARY KEY,
		uid        TEXT NOT NULL,
		title      TEXT NOT NULL,
		daily      INTEGER NOT NULL DEFAULT 0,
		checksum   TEXT NOT NULL,
		indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS blocks (
		page_path TEXT NOT NULL REFERENCES pages(path) ON DELETE CASCADE,
		uid       TEXT NOT NULL,
		text      TEXT NOT NULL,
		depth     INTEGER NOT NULL DEFAULT 0,
		position  INTEGER NOT NULL,
		PRIMARY KEY (page_path, uid)
	)`,

	`CREATE TABLE IF NOT EXISTS links (
		page_path TEXT NOT NULL REFERENCES pages(path) ON DELETE CASCADE,
		target    TEXT NOT NULL COLLATE NOCASE,
		PRIMARY KEY (page_path, target)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pages_title   ON pages(title COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_page   ON blocks(page_path)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target  ON links(target)`,
}

// applyMigrations runs any migrations that have not yet been applied.
func applyMigrations(conn *sql.DB) error {
	// Ensure the migration tracking table exists first.
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		var count int
		row := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, i)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", i, err)
		}
		if count > 0 {
			continue
		}

		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}

		if _, err := conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i); err != nil {
			return fmt.Errorf("record migration %d: %w", i, err)
		}
	}

	return nil
}
