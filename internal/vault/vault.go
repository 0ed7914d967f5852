// Package vault reads a directory of Markdown outlines as pages and
// blocks, and serves them to the assistant as content, search and change
// signal sources.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qcrao/copilot/internal/content"
)

// ErrPageNotFound is returned when a title matches no page.
var ErrPageNotFound = errors.New("vault: page not found")

// DefaultVisibleBlocks is how many top-level blocks of the current page
// count as on screen when the state file names none.
const DefaultVisibleBlocks = 20

// Document is one parsed Markdown file.
type Document struct {
	// Path is slash-separated and relative to the vault root.
	Path    string
	Page    content.Page
	Daily   bool
	Date    time.Time
	Links   []string
	ModTime time.Time
	Size    int64
}

// Options configures a Vault.
type Options struct {
	// DailyNoteFormat is the time layout of daily note file names.
	DailyNoteFormat string
	VisibleBlocks   int
	// Ignore adds gitignore-style patterns to .copilotignore.
	Ignore []string
	Now    func() time.Time
	Logger *slog.Logger
}

// Vault is a directory of Markdown pages. Parsed files are cached and
// reparsed when their size or modification time changes.
type Vault struct {
	root   string
	opts   Options
	ignore *IgnoreMatcher
	logger *slog.Logger

	mu   sync.Mutex
	docs map[string]*Document
}

// Open returns a Vault rooted at root.
func Open(root string, opts Options) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: open: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: open: %s is not a directory", abs)
	}
	if opts.DailyNoteFormat == "" {
		opts.DailyNoteFormat = "2006-01-02"
	}
	if opts.VisibleBlocks <= 0 {
		opts.VisibleBlocks = DefaultVisibleBlocks
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Vault{
		root:   abs,
		opts:   opts,
		ignore: NewIgnoreMatcher(abs, opts.Ignore...),
		logger: opts.Logger,
		docs:   make(map[string]*Document),
	}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string { return v.root }

// Documents returns every page in the vault ordered by path.
func (v *Vault) Documents(ctx context.Context) ([]*Document, error) {
	seen := make(map[string]bool)
	var out []*Document

	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(v.root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if HardIgnore(d.Name()) || v.ignore.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(rel, ".md") || v.ignore.Match(rel) {
			return nil
		}
		doc, err := v.load(rel, p)
		if err != nil {
			v.logger.Warn("vault: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		seen[rel] = true
		out = append(out, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: walk: %w", err)
	}

	v.mu.Lock()
	for rel := range v.docs {
		if !seen[rel] {
			delete(v.docs, rel)
		}
	}
	v.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// load returns the cached document for rel, reparsing it when the file
// changed on disk.
func (v *Vault) load(rel, abs string) (*Document, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	cached, ok := v.docs[rel]
	v.mu.Unlock()
	if ok && cached.ModTime.Equal(info.ModTime()) && cached.Size == info.Size() {
		return cached, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	doc := v.parse(rel, data)
	doc.ModTime = info.ModTime()
	doc.Size = info.Size()

	v.mu.Lock()
	v.docs[rel] = doc
	v.mu.Unlock()
	return doc, nil
}

func (v *Vault) parse(rel string, data []byte) *Document {
	p := parsePage(data, rel)
	base := strings.TrimSuffix(path.Base(rel), ".md")
	doc := &Document{Path: rel, Links: p.Links}
	if day, err := time.ParseInLocation(v.opts.DailyNoteFormat, base, time.Local); err == nil {
		doc.Daily = true
		doc.Date = day
	}
	if p.Title == "" {
		p.Title = base
	}
	doc.Page = content.Page{Title: p.Title, UID: p.UID, Blocks: p.Blocks}
	return doc
}

// Document returns the page whose title, or path without extension,
// matches name case-insensitively.
func (v *Vault) Document(ctx context.Context, name string) (*Document, error) {
	docs, err := v.Documents(ctx)
	if err != nil {
		return nil, err
	}
	return findDocument(docs, name)
}

func findDocument(docs []*Document, name string) (*Document, error) {
	name = strings.TrimSpace(name)
	for _, d := range docs {
		if strings.EqualFold(d.Page.Title, name) {
			return d, nil
		}
	}
	for _, d := range docs {
		if strings.EqualFold(strings.TrimSuffix(d.Path, ".md"), name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPageNotFound, name)
}

// DailyNote returns the daily note for the day of t, if it exists.
func (v *Vault) DailyNote(ctx context.Context, t time.Time) (*Document, error) {
	docs, err := v.Documents(ctx)
	if err != nil {
		return nil, err
	}
	want := t.Format(v.opts.DailyNoteFormat)
	for _, d := range docs {
		if d.Daily && d.Date.Format(v.opts.DailyNoteFormat) == want {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: daily note %s", ErrPageNotFound, want)
}

// References returns, for every page other than title, the blocks that
// link to title. Each matching block keeps its children.
func References(docs []*Document, title string) []content.Page {
	var out []content.Page
	for _, d := range docs {
		if strings.EqualFold(d.Page.Title, title) || !hasLink(d.Links, title) {
			continue
		}
		blocks := referencingBlocks(d.Page.Blocks, title)
		if len(blocks) == 0 {
			continue
		}
		out = append(out, content.Page{Title: d.Page.Title, UID: d.Page.UID, Blocks: blocks})
	}
	return out
}

func hasLink(links []string, title string) bool {
	for _, l := range links {
		if strings.EqualFold(l, title) {
			return true
		}
	}
	return false
}

func referencingBlocks(blocks []content.Block, title string) []content.Block {
	var out []content.Block
	content.Walk(blocks, func(b content.Block, _ int) bool {
		if linksTo(b.Text, title) {
			b.Order = len(out)
			out = append(out, b)
			return false
		}
		return true
	})
	return out
}
