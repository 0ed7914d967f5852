package context

import (
	"fmt"

	"github.com/qcrao/copilot/internal/content"
)

// Truncation selects how an over-budget section is shortened.
type Truncation int

const (
	// TruncateParagraphs keeps whole blank-line separated paragraphs.
	TruncateParagraphs Truncation = iota
	// TruncateLines keeps whole one-line entries of a flat list.
	TruncateLines
)

// Spec holds the fixed budgeting parameters for a section kind.
type Spec struct {
	Priority   int
	Share      float64
	Truncation Truncation
}

// DefaultSpecs returns the built-in section parameters. Shares sum to 1.
func DefaultSpecs() map[content.SectionKind]Spec {
	return map[content.SectionKind]Spec{
		content.CurrentPage:      {Priority: 1, Share: 0.40, Truncation: TruncateParagraphs},
		content.VisibleContent:   {Priority: 2, Share: 0.25, Truncation: TruncateParagraphs},
		content.SidebarNotes:     {Priority: 3, Share: 0.20, Truncation: TruncateParagraphs},
		content.LinkedReferences: {Priority: 4, Share: 0.15, Truncation: TruncateLines},
	}
}

// Section is one labeled bundle of rendered text competing for budget.
type Section struct {
	Kind       content.SectionKind
	Priority   int
	Share      float64
	Truncation Truncation
	// Header is emitted before Text and counts against the allocation.
	Header string
	Text   string
}

// NewSection builds a section of the given kind using spec and the
// kind's default header.
func NewSection(kind content.SectionKind, spec Spec, text string) Section {
	return Section{
		Kind:       kind,
		Priority:   spec.Priority,
		Share:      spec.Share,
		Truncation: spec.Truncation,
		Header:     Header(kind),
		Text:       text,
	}
}

// Header returns the markdown heading that introduces a section. The
// leading blank line separates it from the section before.
func Header(kind content.SectionKind) string {
	return fmt.Sprintf("\n## %s\n\n", kind.Title())
}

// Allocation reports what the allocator decided for one section.
type Allocation struct {
	Kind      content.SectionKind `json:"kind"`
	Priority  int                 `json:"priority"`
	Needed    int                 `json:"needed"`
	Allocated int                 `json:"allocated"`
	Used      int                 `json:"used"`
	Truncated bool                `json:"truncated,omitempty"`
	Omitted   bool                `json:"omitted,omitempty"`
}

// Result is the outcome of BuildContext.
type Result struct {
	Text        string       `json:"text"`
	TokensUsed  int          `json:"tokens_used"`
	Budget      int          `json:"budget"`
	Allocations []Allocation `json:"allocations"`
}
