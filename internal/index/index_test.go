package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/qcrao/copilot/internal/assistant"
	"github.com/qcrao/copilot/internal/content"
	"github.com/qcrao/copilot/internal/search"
	"github.com/qcrao/copilot/internal/vault"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func testDocs() []*vault.Document {
	return []*vault.Document{
		{
			Path: "2026-10-16.md",
			Page: content.Page{Title: "2026-10-16", UID: "d16", Blocks: []content.Block{
				{UID: "d1", Text: "met [[Project Orion]] team", Order: 0, Children: []content.Block{
					{UID: "d2", Text: "orion action items", Order: 0},
				}},
			}},
			Daily: true,
			Links: []string{"Project Orion"},
		},
		{
			Path: "Project Orion.md",
			Page: content.Page{Title: "Project Orion", UID: "orion", Blocks: []content.Block{
				{UID: "o1", Text: "launch window", Order: 0},
				{UID: "o2", Text: "   ", Order: 1, Children: []content.Block{{UID: "o3", Text: "orion hidden"}}},
			}},
		},
		{
			Path: "Process.md",
			Page: content.Page{Title: "Process", UID: "process"},
		},
	}
}

func TestSync_AddsUpdatesRemoves(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()
	docs := testDocs()

	var calls int
	stats, err := ix.Sync(ctx, docs, func(done, total int) {
		calls++
		if total != 3 || done != calls {
			t.Errorf("progress(%d, %d) on call %d", done, total, calls)
		}
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Added != 3 || stats.Total() != 3 {
		t.Errorf("first sync = %+v", stats)
	}
	pages, blocks, err := ix.Counts()
	if err != nil {
		t.Fatal(err)
	}
	// The blank block and its subtree are not indexed.
	if pages != 3 || blocks != 3 {
		t.Errorf("counts = %d pages, %d blocks", pages, blocks)
	}

	stats, err = ix.Sync(ctx, docs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unchanged != 3 || stats.Added+stats.Updated+stats.Removed != 0 {
		t.Errorf("idempotent sync = %+v", stats)
	}

	docs[1].Page.Blocks[0].Text = "launch window moved"
	stats, err = ix.Sync(ctx, docs[:2], nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 || stats.Removed != 1 || stats.Unchanged != 1 {
		t.Errorf("third sync = %+v", stats)
	}
	got, err := ix.Candidates(ctx, "moved", 10)
	if err != nil || len(got.Blocks) != 1 || got.Blocks[0].UID != "o1" {
		t.Errorf("updated block not searchable: %+v %v", got, err)
	}
}

func TestCandidates(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()
	if _, err := ix.Sync(ctx, testDocs(), nil); err != nil {
		t.Fatal(err)
	}

	got, err := ix.Candidates(ctx, "ORION", 10)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got.Pages) != 1 || got.Pages[0] != (search.Candidate{Kind: search.KindPage, UID: "orion", DisplayText: "Project Orion"}) {
		t.Errorf("pages = %+v", got.Pages)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("blocks = %+v", got.Blocks)
	}
	want := search.Candidate{Kind: search.KindBlock, UID: "d2", DisplayText: "orion action items", ParentPageTitle: "2026-10-16"}
	if got.Blocks[0] != want {
		t.Errorf("first block = %+v, want %+v", got.Blocks[0], want)
	}

	daily, err := ix.Candidates(ctx, "10-16", 10)
	if err != nil || len(daily.Pages) != 1 || daily.Pages[0].Kind != search.KindDailyNote {
		t.Errorf("daily = %+v %v", daily, err)
	}

	limited, _ := ix.Candidates(ctx, "o", 1)
	if len(limited.Pages) != 1 || len(limited.Blocks) != 1 {
		t.Errorf("limit not applied: %+v", limited)
	}

	blank, _ := ix.Candidates(ctx, "  ", 10)
	if len(blank.Pages)+len(blank.Blocks) != 0 {
		t.Errorf("blank query returned %+v", blank)
	}
}

func TestCandidates_EscapesWildcards(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()
	docs := []*vault.Document{
		{Path: "a.md", Page: content.Page{Title: "100% done", UID: "a"}},
		{Path: "b.md", Page: content.Page{Title: "1000 done", UID: "b"}},
		{Path: "c.md", Page: content.Page{Title: "snake_case", UID: "c"}},
		{Path: "d.md", Page: content.Page{Title: "snakeXcase", UID: "d"}},
	}
	if _, err := ix.Sync(ctx, docs, nil); err != nil {
		t.Fatal(err)
	}
	for query, uid := range map[string]string{"0%": "a", "e_c": "c"} {
		got, err := ix.Candidates(ctx, query, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Pages) != 1 || got.Pages[0].UID != uid {
			t.Errorf("Candidates(%q) = %+v, want only %s", query, got.Pages, uid)
		}
	}
}

func TestBacklinks(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()
	if _, err := ix.Sync(ctx, testDocs(), nil); err != nil {
		t.Fatal(err)
	}
	got, err := ix.Backlinks(ctx, "project orion")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "2026-10-16" {
		t.Errorf("backlinks = %v", got)
	}
}

func TestIndex_AsSearchSource(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Pro.md"), []byte("- pro tips\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Project Orion.md"), []byte("- launch\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := vault.Open(root, vault.Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	docs, err := v.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ix := testIndex(t)
	if _, err := ix.Sync(ctx, docs, nil); err != nil {
		t.Fatal(err)
	}

	svc, err := assistant.New(assistant.Options{
		Content: v,
		Search:  []assistant.SearchSource{ix, v},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	res, err := svc.Search(ctx, "pro")
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, c := range res.Candidates {
		texts = append(texts, c.DisplayText)
	}
	// Both sources return the same items; duplicates collapse. Prefix
	// matches order by length across kinds.
	if len(texts) != 3 || texts[0] != "Pro" || texts[1] != "pro tips" || texts[2] != "Project Orion" {
		t.Errorf("ranked = %v", texts)
	}
}
