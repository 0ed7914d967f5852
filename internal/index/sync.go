package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qcrao/copilot/internal/cache"
	"github.com/qcrao/copilot/internal/content"
	"github.com/qcrao/copilot/internal/vault"
)

// SyncStats summarises one Sync run.
type SyncStats struct {
	Added     int
	Updated   int
	Removed   int
	Unchanged int
}

// Total is the number of documents seen.
func (s SyncStats) Total() int { return s.Added + s.Updated + s.Unchanged }

// Sync brings the index up to date with docs:
//   - new and changed pages are upserted
//   - pages no longer in docs are deleted
//
// progress, when set, is called after each document.
func (ix *Index) Sync(ctx context.Context, docs []*vault.Document, progress func(done, total int)) (SyncStats, error) {
	var stats SyncStats
	checksums, err := ix.allChecksums(ctx)
	if err != nil {
		return stats, err
	}

	onDisk := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		onDisk[d.Path] = struct{}{}
		sum := DocumentChecksum(d)
		old, known := checksums[d.Path]
		switch {
		case known && old == sum:
			stats.Unchanged++
		default:
			if err := ix.upsert(ctx, d, sum); err != nil {
				ix.logger.Warn("index: upsert failed", slog.String("path", d.Path), slog.String("error", err.Error()))
			} else if known {
				stats.Updated++
				ix.logger.Debug("index: updated", slog.String("path", d.Path))
			} else {
				stats.Added++
				ix.logger.Debug("index: added", slog.String("path", d.Path))
			}
		}
		if progress != nil {
			progress(i+1, len(docs))
		}
	}

	for p := range checksums {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if _, err := ix.db.Conn().ExecContext(ctx, `DELETE FROM pages WHERE path = ?`, p); err != nil {
			ix.logger.Warn("index: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		ix.logger.Debug("index: removed stale", slog.String("path", p))
	}
	return stats, nil
}

// DocumentChecksum digests everything the index stores about d.
func DocumentChecksum(d *vault.Document) string {
	daily := "0"
	if d.Daily {
		daily = "1"
	}
	tuples := [][]string{{d.Page.Title, d.Page.UID, daily}, d.Links}
	content.Walk(d.Page.Blocks, func(b content.Block, depth int) bool {
		tuples = append(tuples, []string{b.UID, b.Text, fmt.Sprint(depth)})
		return true
	})
	return cache.Checksum(tuples...)
}

func (ix *Index) allChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := ix.db.Conn().QueryContext(ctx, `SELECT path, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// upsert replaces a page and its blocks and links within a transaction.
func (ix *Index) upsert(ctx context.Context, d *vault.Document, sum string) error {
	tx, err := ix.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (path, uid, title, daily, checksum, indexed_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			uid        = excluded.uid,
			title      = excluded.title,
			daily      = excluded.daily,
			checksum   = excluded.checksum,
			indexed_at = excluded.indexed_at
	`, d.Path, d.Page.UID, d.Page.Title, d.Daily, sum)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE page_path = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear blocks: %w", err)
	}
	if err := insertBlocks(ctx, tx, d); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE page_path = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	for _, target := range d.Links {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO links (page_path, target) VALUES (?, ?)`, d.Path, target); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}

	return tx.Commit()
}

func insertBlocks(ctx context.Context, tx *sql.Tx, d *vault.Document) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO blocks (page_path, uid, text, depth, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare block insert: %w", err)
	}
	defer stmt.Close()

	var insertErr error
	pos := 0
	content.Walk(d.Page.Blocks, func(b content.Block, depth int) bool {
		if insertErr != nil {
			return false
		}
		text := vault.DisplayText(b.Text)
		if strings.TrimSpace(text) == "" {
			return false
		}
		if _, err := stmt.ExecContext(ctx, d.Path, b.UID, text, depth, pos); err != nil {
			insertErr = fmt.Errorf("index: insert block: %w", err)
			return false
		}
		pos++
		return true
	})
	return insertErr
}
