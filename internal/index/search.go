package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/qcrao/copilot/internal/assistant"
	"github.com/qcrao/copilot/internal/search"
)

// FetchSearchCandidates implements assistant.SearchSource.
func (ix *Index) FetchSearchCandidates(ctx context.Context, query string) (assistant.Candidates, error) {
	return ix.Candidates(ctx, query, ix.fetchLimit)
}

// Candidates returns up to limit pages and up to limit blocks whose text
// contains query. Matching is case-insensitive for ASCII; ordering is left
// to the ranker.
func (ix *Index) Candidates(ctx context.Context, query string, limit int) (assistant.Candidates, error) {
	var out assistant.Candidates
	q := strings.TrimSpace(query)
	if q == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = ix.fetchLimit
	}
	pattern := "%" + escapeLike(q) + "%"
	conn := ix.db.Conn()

	rows, err := conn.QueryContext(ctx, `
		SELECT uid, title, daily FROM pages
		WHERE title LIKE ? ESCAPE '\'
		ORDER BY length(title), title
		LIMIT ?`, pattern, limit)
	if err != nil {
		return out, fmt.Errorf("index: page candidates: %w", err)
	}
	for rows.Next() {
		var uid, title string
		var daily bool
		if err := rows.Scan(&uid, &title, &daily); err != nil {
			rows.Close()
			return out, fmt.Errorf("index: scan page: %w", err)
		}
		kind := search.KindPage
		if daily {
			kind = search.KindDailyNote
		}
		out.Pages = append(out.Pages, search.Candidate{Kind: kind, UID: uid, DisplayText: title})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("index: page candidates: %w", err)
	}

	rows, err = conn.QueryContext(ctx, `
		SELECT b.uid, b.text, p.title FROM blocks b
		JOIN pages p ON p.path = b.page_path
		WHERE b.text LIKE ? ESCAPE '\'
		ORDER BY length(b.text), p.path, b.position
		LIMIT ?`, pattern, limit)
	if err != nil {
		return out, fmt.Errorf("index: block candidates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c search.Candidate
		if err := rows.Scan(&c.UID, &c.DisplayText, &c.ParentPageTitle); err != nil {
			return out, fmt.Errorf("index: scan block: %w", err)
		}
		c.Kind = search.KindBlock
		out.Blocks = append(out.Blocks, c)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("index: block candidates: %w", err)
	}
	return out, nil
}

// Backlinks returns the titles of pages linking to title.
func (ix *Index) Backlinks(ctx context.Context, title string) ([]string, error) {
	rows, err := ix.db.Conn().QueryContext(ctx, `
		SELECT p.title FROM links l
		JOIN pages p ON p.path = l.page_path
		WHERE l.target = ?
		ORDER BY p.path`, title)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
