package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/qcrao/copilot/internal/search"
)

// search fans out to every search source, drops duplicate candidates and
// ranks the rest. Failing sources become warnings.
func (s *Service) search(ctx context.Context, query string) SearchResult {
	results := make([]Candidates, len(s.searchers))
	errs := make([]error, len(s.searchers))

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range s.searchers {
		g.Go(func() error {
			results[i], errs[i] = src.FetchSearchCandidates(gCtx, query)
			return nil
		})
	}
	_ = g.Wait()

	out := SearchResult{Query: query}
	seen := make(map[string]bool)
	var all []search.Candidate
	add := func(cs []search.Candidate) {
		for _, c := range cs {
			id := c.Kind.String() + "\x00" + c.UID
			if seen[id] {
				continue
			}
			seen[id] = true
			all = append(all, c)
		}
	}
	for i := range s.searchers {
		if errs[i] != nil {
			w := unavailable(fmt.Sprintf("search[%d]", i), errs[i])
			s.logger.Warn("assistant: search source unavailable",
				slog.Int("source", i), slog.String("error", errs[i].Error()))
			out.Warnings = append(out.Warnings, w)
			continue
		}
		add(results[i].Pages)
		add(results[i].Blocks)
	}

	out.Candidates = search.RankMerged(query, all)
	return out
}
