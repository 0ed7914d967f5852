package assistant

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qcrao/copilot/internal/content"
)

// Section source names used in warnings.
const (
	sourceContent    = "content"
	sourceCurrent    = "current_page"
	sourceSidebar    = "sidebar_notes"
	sourceVisible    = "visible_content"
	sourceLinked     = "linked_references"
	sourceVisibility = "visibility"
	sourceCache      = "cache"
)

// fetchSources gathers content from src. Each failing section is left
// empty and reported as a warning. allFailed is true when nothing could
// be fetched at all.
func fetchSources(ctx context.Context, src ContentSource) (out Sources, warnings []Warning, allFailed bool) {
	sf, ok := src.(SectionFetcher)
	if !ok {
		s, err := src.FetchContentSources(ctx)
		if err != nil {
			return Sources{}, []Warning{unavailable(sourceContent, err)}, true
		}
		return s, nil, false
	}

	var mu sync.Mutex
	fail := func(name string, err error) {
		mu.Lock()
		warnings = append(warnings, unavailable(name, err))
		mu.Unlock()
	}

	// Fetch errors never abort the group; each section is isolated.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := sf.CurrentPage(gCtx)
		if err != nil {
			fail(sourceCurrent, err)
			return nil
		}
		out.CurrentPage = p
		return nil
	})
	g.Go(func() error {
		pages, err := sf.Sidebar(gCtx)
		if err != nil {
			fail(sourceSidebar, err)
			return nil
		}
		out.SidebarNotes = pages
		return nil
	})
	g.Go(func() error {
		blocks, err := sf.Visible(gCtx)
		if err != nil {
			fail(sourceVisible, err)
			return nil
		}
		out.VisibleContent = blocks
		return nil
	})
	g.Go(func() error {
		pages, err := sf.LinkedReferences(gCtx)
		if err != nil {
			fail(sourceLinked, err)
			return nil
		}
		out.LinkedReferences = pages
		return nil
	})
	_ = g.Wait()

	sortWarnings(warnings)
	return out, warnings, len(warnings) == 4
}

// sortWarnings orders warnings by source so output does not depend on
// goroutine scheduling.
func sortWarnings(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].Source < ws[j].Source })
}

// resolveVisible maps on-screen refs to blocks of the given pages, in ref
// order. Refs naming a whole page contribute all of its blocks.
func resolveVisible(refs []content.Ref, pages ...*content.Page) []content.Block {
	byUID := make(map[string]*content.Page, len(pages))
	for _, p := range pages {
		if p != nil {
			byUID[p.UID] = p
		}
	}
	var out []content.Block
	seen := make(map[string]bool)
	for _, r := range refs {
		p, ok := byUID[r.PageUID]
		if !ok {
			continue
		}
		if r.BlockUID == "" {
			for _, b := range p.Blocks {
				if !seen[b.UID] {
					seen[b.UID] = true
					out = append(out, b)
				}
			}
			continue
		}
		if seen[r.BlockUID] {
			continue
		}
		if b, ok := content.Find(p.Blocks, r.BlockUID); ok {
			seen[r.BlockUID] = true
			out = append(out, b)
		}
	}
	for i := range out {
		out[i].Order = i
	}
	return out
}
