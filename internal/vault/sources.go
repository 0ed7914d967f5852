package vault

import (
	"context"
	"log/slog"
	"strings"

	"github.com/qcrao/copilot/internal/assistant"
	"github.com/qcrao/copilot/internal/content"
	"github.com/qcrao/copilot/internal/search"
)

// View is the vault seen from one page. The zero page follows the state
// file.
type View struct {
	v    *Vault
	page string
}

// Focus returns a view whose current page is page.
func (v *Vault) Focus(page string) assistant.ContentSource {
	return &View{v: v, page: page}
}

func (v *Vault) view() *View { return &View{v: v} }

// FetchContentSources implements assistant.ContentSource.
func (v *Vault) FetchContentSources(ctx context.Context) (assistant.Sources, error) {
	return v.view().FetchContentSources(ctx)
}

// CurrentPage implements assistant.SectionFetcher.
func (v *Vault) CurrentPage(ctx context.Context) (*content.Page, error) {
	return v.view().CurrentPage(ctx)
}

// Sidebar implements assistant.SectionFetcher.
func (v *Vault) Sidebar(ctx context.Context) ([]content.Page, error) {
	return v.view().Sidebar(ctx)
}

// Visible implements assistant.SectionFetcher.
func (v *Vault) Visible(ctx context.Context) ([]content.Block, error) {
	return v.view().Visible(ctx)
}

// LinkedReferences implements assistant.SectionFetcher.
func (v *Vault) LinkedReferences(ctx context.Context) ([]content.Page, error) {
	return v.view().LinkedReferences(ctx)
}

// CurrentlyVisible implements assistant.VisibilitySource.
func (v *Vault) CurrentlyVisible(ctx context.Context) ([]content.Ref, error) {
	return v.view().CurrentlyVisible(ctx)
}

// current resolves the page this view is about. It returns nil without
// error when nothing is open and there is no daily note for today.
func (w *View) current(ctx context.Context) (*Document, []*Document, State, error) {
	docs, err := w.v.Documents(ctx)
	if err != nil {
		return nil, nil, State{}, err
	}
	state, err := LoadState(w.v.root)
	if err != nil {
		return nil, docs, state, err
	}
	name := w.page
	if name == "" {
		name = state.Current
	}
	if name != "" {
		d, err := findDocument(docs, name)
		return d, docs, state, err
	}
	today := w.v.opts.Now().Format(w.v.opts.DailyNoteFormat)
	for _, d := range docs {
		if d.Daily && d.Date.Format(w.v.opts.DailyNoteFormat) == today {
			return d, docs, state, nil
		}
	}
	return nil, docs, state, nil
}

// FetchContentSources gathers all four sections at once. The first
// failure fails the whole fetch.
func (w *View) FetchContentSources(ctx context.Context) (assistant.Sources, error) {
	var out assistant.Sources
	var err error
	if out.CurrentPage, err = w.CurrentPage(ctx); err != nil {
		return assistant.Sources{}, err
	}
	if out.SidebarNotes, err = w.Sidebar(ctx); err != nil {
		return assistant.Sources{}, err
	}
	if out.VisibleContent, err = w.Visible(ctx); err != nil {
		return assistant.Sources{}, err
	}
	if out.LinkedReferences, err = w.LinkedReferences(ctx); err != nil {
		return assistant.Sources{}, err
	}
	return out, nil
}

// CurrentPage returns the open page, or nil when none is open.
func (w *View) CurrentPage(ctx context.Context) (*content.Page, error) {
	d, _, _, err := w.current(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	p := d.Page
	return &p, nil
}

// Sidebar returns the pages named in the state file. Missing pages are
// skipped.
func (w *View) Sidebar(ctx context.Context) ([]content.Page, error) {
	docs, err := w.v.Documents(ctx)
	if err != nil {
		return nil, err
	}
	state, err := LoadState(w.v.root)
	if err != nil {
		return nil, err
	}
	var out []content.Page
	for _, name := range state.Sidebar {
		d, err := findDocument(docs, name)
		if err != nil {
			w.v.logger.Warn("vault: sidebar page missing", slog.String("page", name))
			continue
		}
		out = append(out, d.Page)
	}
	return out, nil
}

// CurrentlyVisible returns refs to the on-screen blocks of the current
// page.
func (w *View) CurrentlyVisible(ctx context.Context) ([]content.Ref, error) {
	d, _, state, err := w.current(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	if len(state.Visible) > 0 && w.page == "" {
		refs := make([]content.Ref, 0, len(state.Visible))
		for _, uid := range state.Visible {
			refs = append(refs, content.Ref{PageUID: d.Page.UID, BlockUID: uid})
		}
		return refs, nil
	}
	blocks := content.SortedChildren(d.Page.Blocks)
	n := min(len(blocks), w.v.opts.VisibleBlocks)
	refs := make([]content.Ref, 0, n)
	for _, b := range blocks[:n] {
		refs = append(refs, content.Ref{PageUID: d.Page.UID, BlockUID: b.UID})
	}
	return refs, nil
}

// Visible resolves CurrentlyVisible against the current page.
func (w *View) Visible(ctx context.Context) ([]content.Block, error) {
	d, _, _, err := w.current(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	refs, err := w.CurrentlyVisible(ctx)
	if err != nil {
		return nil, err
	}
	var out []content.Block
	for _, r := range refs {
		if b, ok := content.Find(d.Page.Blocks, r.BlockUID); ok {
			b.Order = len(out)
			out = append(out, b)
		}
	}
	return out, nil
}

// LinkedReferences returns blocks on other pages that link to the
// current page.
func (w *View) LinkedReferences(ctx context.Context) ([]content.Page, error) {
	d, docs, _, err := w.current(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	return References(docs, d.Page.Title), nil
}

// FetchSearchCandidates implements assistant.SearchSource by scanning the
// vault. Only pages and blocks containing query are returned.
func (v *Vault) FetchSearchCandidates(ctx context.Context, query string) (assistant.Candidates, error) {
	docs, err := v.Documents(ctx)
	if err != nil {
		return assistant.Candidates{}, err
	}
	return Candidates(docs, query), nil
}

// Candidates lists the pages and blocks of docs whose text contains
// query, case-insensitively.
func Candidates(docs []*Document, query string) assistant.Candidates {
	var out assistant.Candidates
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return out
	}
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Page.Title), q) {
			kind := search.KindPage
			if d.Daily {
				kind = search.KindDailyNote
			}
			out.Pages = append(out.Pages, search.Candidate{Kind: kind, UID: d.Page.UID, DisplayText: d.Page.Title})
		}
		content.Walk(d.Page.Blocks, func(b content.Block, _ int) bool {
			txt := DisplayText(b.Text)
			if txt != "" && strings.Contains(strings.ToLower(txt), q) {
				out.Blocks = append(out.Blocks, search.Candidate{
					Kind:            search.KindBlock,
					UID:             b.UID,
					DisplayText:     txt,
					ParentPageTitle: d.Page.Title,
				})
			}
			return true
		})
	}
	return out
}

// DisplayText flattens block text to one line.
func DisplayText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
