// Package assistant ties content sources, the ranker, the cache and the
// budget allocator together into the two operations hosts call: build
// the context for the current view and search for candidates.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qcrao/copilot/internal/content"
	"github.com/qcrao/copilot/internal/search"
)

// ErrSourceUnavailable marks a collaborator fetch that failed.
var ErrSourceUnavailable = errors.New("source unavailable")

// Sources is everything a content source can offer for one build.
type Sources struct {
	CurrentPage      *content.Page   `json:"current_page,omitempty"`
	SidebarNotes     []content.Page  `json:"sidebar_notes,omitempty"`
	VisibleContent   []content.Block `json:"visible_content,omitempty"`
	LinkedReferences []content.Page  `json:"linked_references,omitempty"`
}

// ContentSource supplies the raw content for a build.
type ContentSource interface {
	FetchContentSources(ctx context.Context) (Sources, error)
}

// SectionFetcher is implemented by content sources that can fetch each
// section separately. The service prefers it so one failing section does
// not empty the others.
type SectionFetcher interface {
	CurrentPage(ctx context.Context) (*content.Page, error)
	Sidebar(ctx context.Context) ([]content.Page, error)
	Visible(ctx context.Context) ([]content.Block, error)
	LinkedReferences(ctx context.Context) ([]content.Page, error)
}

// Focuser is implemented by content sources that can build around a page
// other than the current one.
type Focuser interface {
	Focus(page string) ContentSource
}

// Candidates are raw search candidates from one source.
type Candidates struct {
	Pages  []search.Candidate
	Blocks []search.Candidate
}

// SearchSource supplies unranked candidates for a query.
type SearchSource interface {
	FetchSearchCandidates(ctx context.Context, query string) (Candidates, error)
}

// SignalSource reports low-level changes. The callback may be invoked in
// bursts; the service debounces them.
type SignalSource interface {
	OnRawChangeSignal(cb func(key string)) (unregister func())
}

// VisibilitySource reports what is currently on screen.
type VisibilitySource interface {
	CurrentlyVisible(ctx context.Context) ([]content.Ref, error)
}

// Warning is a non-fatal problem encountered while building or searching.
type Warning struct {
	Source string
	Err    error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Source, w.Err)
}

// MarshalText lets warnings appear as plain strings in JSON output.
func (w Warning) MarshalText() ([]byte, error) {
	return []byte(w.Error()), nil
}

func unavailable(source string, err error) Warning {
	return Warning{Source: source, Err: fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, source, err)}
}
