package context

import (
	"fmt"
	"strings"

	"github.com/qcrao/copilot/internal/content"
)

// Formatter renders content into section text ready for allocation.
// Top-level blocks are separated by blank lines so that paragraph
// truncation drops whole subtrees.
type Formatter struct{}

// NewFormatter creates a Formatter.
func NewFormatter() *Formatter { return &Formatter{} }

// FormatPage renders a single page, or "" for nil.
func (f *Formatter) FormatPage(p *content.Page) string {
	if p == nil {
		return ""
	}
	return content.RenderPage(*p)
}

// FormatPages renders several pages separated by blank lines.
func (f *Formatter) FormatPages(pages []content.Page) string {
	return content.RenderPages(pages)
}

// FormatBlocks renders a block forest as a bullet outline.
func (f *Formatter) FormatBlocks(blocks []content.Block) string {
	return content.RenderOutline(blocks)
}

// FormatReferences renders one line per referencing block so the list can
// be cut between entries.
func (f *Formatter) FormatReferences(pages []content.Page) string {
	var b strings.Builder
	for _, p := range pages {
		content.Walk(p.Blocks, func(blk content.Block, _ int) bool {
			text := strings.TrimSpace(blk.Text)
			if text == "" {
				return false
			}
			fmt.Fprintf(&b, "- %s: %s\n", p.Title, strings.Join(strings.Fields(text), " "))
			return true
		})
	}
	return b.String()
}
