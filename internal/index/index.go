// Package index keeps a SQLite copy of the vault's pages and blocks so
// search candidates can be retrieved without reparsing every file.
package index

import (
	"fmt"
	"log/slog"

	"github.com/qcrao/copilot/internal/db"
)

// DefaultFetchLimit caps how many pages and how many blocks one query
// retrieves before ranking.
const DefaultFetchLimit = 200

// Index is the search index over one vault.
type Index struct {
	db         *db.DB
	logger     *slog.Logger
	fetchLimit int
}

// Open opens the index database at path, creating it if needed.
func Open(path string, logger *slog.Logger) (*Index, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return New(d, logger), nil
}

// New wraps an open database.
func New(d *db.DB, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{db: d, logger: logger, fetchLimit: DefaultFetchLimit}
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Counts returns the number of indexed pages and blocks.
func (ix *Index) Counts() (pages, blocks int, err error) {
	conn := ix.db.Conn()
	if err := conn.QueryRow(`SELECT COUNT(*) FROM pages`).Scan(&pages); err != nil {
		return 0, 0, fmt.Errorf("index: count pages: %w", err)
	}
	if err := conn.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&blocks); err != nil {
		return 0, 0, fmt.Errorf("index: count blocks: %w", err)
	}
	return pages, blocks, nil
}
