package content

import "strings"

// indentUnit is emitted once per depth level.
const indentUnit = "  "

// Render writes blocks depth-first as an indented bullet outline.
//
// A block whose trimmed text is empty is skipped together with its whole
// subtree, even when descendants carry text.
func Render(blocks []Block, indentLevel int) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	renderInto(&b, blocks, indentLevel)
	return b.String()
}

func renderInto(b *strings.Builder, blocks []Block, level int) {
	if level < 0 {
		level = 0
	}
	for _, blk := range SortedChildren(blocks) {
		text := strings.TrimSpace(blk.Text)
		if text == "" {
			continue
		}
		b.WriteString(strings.Repeat(indentUnit, level))
		b.WriteString("- ")
		// Multi-line block text stays under its bullet.
		b.WriteString(strings.ReplaceAll(text, "\n", "\n"+strings.Repeat(indentUnit, level+1)))
		b.WriteString("\n")
		renderInto(b, blk.Children, level+1)
	}
}

// RenderOutline renders blocks like Render at depth zero, with a blank
// line between top-level subtrees so each subtree reads as one paragraph.
func RenderOutline(blocks []Block) string {
	var parts []string
	for _, b := range SortedChildren(blocks) {
		if r := Render([]Block{b}, 0); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "\n")
}

// RenderPage renders a page as a level-one heading followed by its
// outline.
func RenderPage(p Page) string {
	body := RenderOutline(p.Blocks)
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return body
	}
	if body == "" {
		return "# " + title + "\n"
	}
	return "# " + title + "\n\n" + body
}

// RenderPages renders pages separated by a blank line, skipping pages that
// render to nothing.
func RenderPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if r := RenderPage(p); r != "" {
			parts = append(parts, strings.TrimRight(r, "\n"))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}
