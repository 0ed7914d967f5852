package vault

import (
	"bytes"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/qcrao/copilot/internal/content"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	blockIDRe  = regexp.MustCompile(`(?:^|\s+)id::\s*([A-Za-z0-9_-]+)\s*$`)
)

// markdown is safe to share; parsing state is per call.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type frontmatter struct {
	Title string `yaml:"title"`
	UID   string `yaml:"uid"`
}

// parsed is the vault-independent result of reading one file.
type parsed struct {
	Title  string
	UID    string
	Blocks []content.Block
	Links  []string
}

// parsePage reads a Markdown outline. Top-level list items, paragraphs
// and headings become blocks; nested list items become children. The
// first H1 is the title unless frontmatter sets one. fallbackUID seeds
// the page UID when frontmatter has none.
func parsePage(data []byte, fallbackUID string) parsed {
	fm, body := splitFrontmatter(data)
	p := parsed{Title: strings.TrimSpace(fm.Title), UID: strings.TrimSpace(fm.UID)}
	if p.UID == "" {
		p.UID = shortHash(fallbackUID)
	}

	src := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(src))
	b := &outlineBuilder{src: src, pageUID: p.UID}

	order := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && p.Title == "" {
				p.Title = b.text(node)
				continue
			}
			p.Blocks = append(p.Blocks, b.leaf(node, []int{order}))
			order++
		case *ast.List:
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				p.Blocks = append(p.Blocks, b.item(li, []int{order}))
				order++
			}
		case *ast.Paragraph, *ast.FencedCodeBlock, *ast.CodeBlock, *ast.Blockquote:
			p.Blocks = append(p.Blocks, b.leaf(node, []int{order}))
			order++
		}
	}
	p.Links = extractLinks(body)
	return p
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the body. Invalid or missing frontmatter leaves the
// whole input as body.
func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return frontmatter{}, string(data)
	}
	body := rest[idx+1+len(delim):]
	return fm, strings.TrimLeft(string(body), "\n\r")
}

type outlineBuilder struct {
	src     []byte
	pageUID string
}

// text returns the raw source lines of a block node.
func (b *outlineBuilder) text(n ast.Node) string {
	lines := n.Lines()
	if lines.Len() == 0 {
		var parts []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t := b.text(c); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	}
	out := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(b.src)), "\r\n"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (b *outlineBuilder) leaf(n ast.Node, path []int) content.Block {
	return b.block(b.text(n), nil, path)
}

// item converts a list item. Nested lists become children; every other
// child contributes to the item's text.
func (b *outlineBuilder) item(li ast.Node, path []int) content.Block {
	var parts []string
	var children []content.Block
	for c := li.FirstChild(); c != nil; c = c.NextSibling() {
		if list, ok := c.(*ast.List); ok {
			for sub := list.FirstChild(); sub != nil; sub = sub.NextSibling() {
				childPath := append(append([]int(nil), path...), len(children))
				children = append(children, b.item(sub, childPath))
			}
			continue
		}
		if t := b.text(c); t != "" {
			parts = append(parts, t)
		}
	}
	return b.block(strings.Join(parts, "\n"), children, path)
}

func (b *outlineBuilder) block(txt string, children []content.Block, path []int) content.Block {
	uid, txt := splitBlockID(txt)
	if uid == "" {
		uid = shortHash(b.pageUID + "/" + pathKey(path))
	}
	return content.Block{
		UID:      uid,
		Text:     txt,
		Children: children,
		Order:    path[len(path)-1],
	}
}

// splitBlockID strips a trailing "id:: <uid>" marker from the last line.
func splitBlockID(txt string) (uid, rest string) {
	lines := strings.Split(txt, "\n")
	last := lines[len(lines)-1]
	m := blockIDRe.FindStringSubmatchIndex(last)
	if m == nil {
		return "", txt
	}
	uid = last[m[2]:m[3]]
	lines[len(lines)-1] = strings.TrimRight(last[:m[0]], " \t")
	return uid, strings.TrimSpace(strings.Join(lines, "\n"))
}

func pathKey(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

func shortHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := linkTarget(m[1])
		if target == "" {
			continue
		}
		key := strings.ToLower(target)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, target)
	}
	return out
}

// linkTarget handles aliases: [[Target|Alias]] -> Target.
func linkTarget(raw string) string {
	if i := strings.Index(raw, "|"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// linksTo reports whether txt contains a wikilink to title.
func linksTo(txt, title string) bool {
	for _, m := range wikilinkRe.FindAllStringSubmatch(txt, -1) {
		if strings.EqualFold(linkTarget(m[1]), title) {
			return true
		}
	}
	return false
}
