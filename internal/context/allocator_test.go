package context

import (
	"strings"
	"testing"

	"github.com/qcrao/copilot/internal/content"
)

// paragraphs returns n distinct paragraphs of exactly ten tokens each,
// counting the blank line that follows every paragraph.
func paragraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(strings.Repeat(string(rune('a'+i%26)), 38))
		b.WriteString("\n\n")
	}
	return b.String()
}

func bare(kind content.SectionKind, priority int, share float64, text string) Section {
	return Section{Kind: kind, Priority: priority, Share: share, Text: text}
}

func TestBuildContext_RedistributionScenario(t *testing.T) {
	sections := []Section{
		bare(content.CurrentPage, 1, 0.5, paragraphs(10)),
		bare(content.VisibleContent, 2, 0.3, paragraphs(1)),
		bare(content.SidebarNotes, 3, 0.2, paragraphs(20)),
	}
	res := BuildContext(sections, 120)

	wantNeeded := []int{100, 10, 200}
	wantAlloc := []int{86, 10, 24}
	wantTrunc := []bool{true, false, true}
	total := 0
	for i, a := range res.Allocations {
		if a.Needed != wantNeeded[i] {
			t.Errorf("section %d needed = %d, want %d", i, a.Needed, wantNeeded[i])
		}
		if a.Allocated != wantAlloc[i] {
			t.Errorf("section %d allocated = %d, want %d", i, a.Allocated, wantAlloc[i])
		}
		if a.Truncated != wantTrunc[i] {
			t.Errorf("section %d truncated = %v, want %v", i, a.Truncated, wantTrunc[i])
		}
		if a.Used > a.Allocated {
			t.Errorf("section %d used %d of %d", i, a.Used, a.Allocated)
		}
		total += a.Allocated
	}
	if total != 120 {
		t.Errorf("allocations sum to %d, want 120", total)
	}
	if !strings.Contains(res.Text, "[... 3 more paragraphs omitted]") {
		t.Errorf("missing notice for first section:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "[... 19 more paragraphs omitted]") {
		t.Errorf("missing notice for third section:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, paragraphs(1)) {
		t.Error("second section should be emitted in full")
	}
	if res.TokensUsed > 120 || EstimateTokens(res.Text) != res.TokensUsed {
		t.Errorf("tokens used = %d, estimate = %d", res.TokensUsed, EstimateTokens(res.Text))
	}
}

func TestBuildContext_NonPositiveBudget(t *testing.T) {
	sections := []Section{bare(content.CurrentPage, 1, 1, "hello")}
	for _, b := range []int{0, -5} {
		if res := BuildContext(sections, b); res.Text != "" {
			t.Errorf("budget %d: expected empty text, got %q", b, res.Text)
		}
	}
}

func TestBuildContext_AllSectionsEmpty(t *testing.T) {
	sections := []Section{
		NewSection(content.CurrentPage, DefaultSpecs()[content.CurrentPage], ""),
		NewSection(content.SidebarNotes, DefaultSpecs()[content.SidebarNotes], "  \n "),
	}
	if res := BuildContext(sections, 1000); res.Text != "" {
		t.Errorf("expected empty text, got %q", res.Text)
	}
}

func TestBuildContext_HeaderLargerThanAllocation(t *testing.T) {
	s := Section{
		Kind:     content.CurrentPage,
		Priority: 1,
		Share:    0.1,
		Header:   strings.Repeat("h", 100),
		Text:     "body",
	}
	res := BuildContext([]Section{s}, 100)
	if res.Text != "" {
		t.Errorf("expected section to be omitted, got %q", res.Text)
	}
	if !res.Allocations[0].Omitted {
		t.Error("allocation should be marked omitted")
	}
}

func TestBuildContext_NoTruncationWhenSharesSuffice(t *testing.T) {
	specs := DefaultSpecs()
	texts := map[content.SectionKind]string{
		content.CurrentPage:      "# Orion\n\n- launch plan\n  - dates\n",
		content.VisibleContent:   "- launch plan\n",
		content.SidebarNotes:     "# Notes\n\n- remember the fuel\n",
		content.LinkedReferences: "- Weekly: discussed [[Orion]]\n",
	}
	var sections []Section
	for _, k := range content.SectionKinds {
		sections = append(sections, NewSection(k, specs[k], texts[k]))
	}
	res := BuildContext(sections, 1000)
	for k, text := range texts {
		if !strings.Contains(res.Text, Header(k)+text) {
			t.Errorf("%s not emitted verbatim:\n%s", k, res.Text)
		}
	}
	if strings.Contains(res.Text, "omitted]") || strings.Contains(res.Text, "...and") {
		t.Errorf("unexpected truncation notice:\n%s", res.Text)
	}
	for _, a := range res.Allocations {
		if a.Truncated || a.Omitted {
			t.Errorf("%s: truncated=%v omitted=%v", a.Kind, a.Truncated, a.Omitted)
		}
	}
}

func TestBuildContext_ExactSharesEmitEverySection(t *testing.T) {
	sections := []Section{
		bare(content.CurrentPage, 1, 0.5, strings.Repeat("a", 200)),
		bare(content.SidebarNotes, 2, 0.5, strings.Repeat("b", 200)),
	}
	res := BuildContext(sections, 100)
	for _, a := range res.Allocations {
		if a.Needed != 50 || a.Allocated != 50 || a.Truncated || a.Omitted {
			t.Errorf("%s: needed=%d allocated=%d truncated=%v omitted=%v",
				a.Kind, a.Needed, a.Allocated, a.Truncated, a.Omitted)
		}
	}
	if want := strings.Repeat("a", 200) + strings.Repeat("b", 200); res.Text != want {
		t.Errorf("text has %d bytes, want both sections verbatim", len(res.Text))
	}
	if res.TokensUsed != 100 {
		t.Errorf("tokens used = %d, want 100", res.TokensUsed)
	}
}

func TestBuildContext_ExactSharesWithHeaders(t *testing.T) {
	const budget = 100
	specs := DefaultSpecs()
	var sections []Section
	texts := make(map[content.SectionKind]string)
	for _, k := range content.SectionKinds {
		spec := specs[k]
		share := int(float64(budget)*spec.Share + 1e-9)
		// Fill the share exactly: header tokens plus a body of whole tokens.
		body := 4 * (share - EstimateTokens(Header(k)))
		texts[k] = strings.Repeat("x", body-1) + "\n"
		sections = append(sections, NewSection(k, spec, texts[k]))
	}
	res := BuildContext(sections, budget)
	for _, a := range res.Allocations {
		if a.Needed != a.Allocated {
			t.Errorf("%s: needed %d, allocated %d", a.Kind, a.Needed, a.Allocated)
		}
		if a.Truncated || a.Omitted {
			t.Errorf("%s: truncated=%v omitted=%v", a.Kind, a.Truncated, a.Omitted)
		}
	}
	for k, text := range texts {
		if !strings.Contains(res.Text, Header(k)+text) {
			t.Errorf("%s not emitted verbatim", k)
		}
	}
	if res.TokensUsed > budget {
		t.Errorf("tokens used = %d, budget %d", res.TokensUsed, budget)
	}
}

func TestBuildContext_SingleOversizedParagraphIsOmitted(t *testing.T) {
	// One parent bullet with many children is a single paragraph, which is
	// never cut: it is kept whole or left out.
	var b strings.Builder
	b.WriteString("- parent\n")
	for i := 0; i < 40; i++ {
		b.WriteString("  - child with some words\n")
	}
	sections := []Section{
		bare(content.CurrentPage, 1, 0.5, b.String()),
		bare(content.SidebarNotes, 2, 0.5, paragraphs(2)),
	}
	res := BuildContext(sections, 100)
	if a := res.Allocations[0]; !a.Omitted || a.Truncated {
		t.Errorf("current page: truncated=%v omitted=%v", a.Truncated, a.Omitted)
	}
	if strings.Contains(res.Text, "parent") {
		t.Errorf("oversized paragraph was partly emitted:\n%s", res.Text)
	}
	if res.Text != paragraphs(2) {
		t.Errorf("second section should be emitted in full, got %q", res.Text)
	}
}

func TestBuildContext_PriorityOrder(t *testing.T) {
	specs := DefaultSpecs()
	sections := []Section{
		NewSection(content.LinkedReferences, specs[content.LinkedReferences], "- ref\n"),
		NewSection(content.CurrentPage, specs[content.CurrentPage], "- page\n"),
	}
	res := BuildContext(sections, 500)
	if strings.Index(res.Text, "## Current Page") > strings.Index(res.Text, "## Linked References") {
		t.Errorf("current page should come first:\n%s", res.Text)
	}
	if res.Allocations[0].Kind != content.CurrentPage {
		t.Errorf("first allocation = %s, want current_page", res.Allocations[0].Kind)
	}
}

func TestBuildContext_Deterministic(t *testing.T) {
	specs := DefaultSpecs()
	var sections []Section
	for i, k := range content.SectionKinds {
		sections = append(sections, NewSection(k, specs[k], paragraphs(5+i*7)))
	}
	first := BuildContext(sections, 150).Text
	for i := 0; i < 50; i++ {
		if got := BuildContext(sections, 150).Text; got != first {
			t.Fatalf("run %d produced different output", i)
		}
	}
}

func TestBuildContext_RespectsBudget(t *testing.T) {
	specs := DefaultSpecs()
	var sections []Section
	for i, k := range content.SectionKinds {
		sections = append(sections, NewSection(k, specs[k], paragraphs(3+i*4)))
	}
	for budget := 1; budget <= 400; budget++ {
		res := BuildContext(sections, budget)
		if got := EstimateTokens(res.Text); got > budget {
			t.Fatalf("budget %d: output has %d tokens", budget, got)
		}
		sum := 0
		for _, a := range res.Allocations {
			sum += a.Allocated
		}
		if sum > budget {
			t.Fatalf("budget %d: allocations sum to %d", budget, sum)
		}
	}
}

func TestBuildContext_RedistributionMonotonic(t *testing.T) {
	prev := []int{-1, -1}
	for n := 20; n >= 0; n-- {
		sections := []Section{
			bare(content.CurrentPage, 1, 0.4, paragraphs(n)),
			bare(content.VisibleContent, 2, 0.3, paragraphs(15)),
			bare(content.SidebarNotes, 3, 0.3, paragraphs(15)),
		}
		res := BuildContext(sections, 200)
		for i, a := range res.Allocations[1:] {
			if a.Allocated < prev[i] {
				t.Fatalf("n=%d: %s allocation dropped from %d to %d", n, a.Kind, prev[i], a.Allocated)
			}
			prev[i] = a.Allocated
		}
	}
}

func TestBuildContext_EmptySectionReleasesShare(t *testing.T) {
	sections := []Section{
		bare(content.CurrentPage, 1, 0.5, paragraphs(10)),
		bare(content.SidebarNotes, 2, 0.5, ""),
	}
	res := BuildContext(sections, 100)
	if res.Allocations[0].Allocated != 100 {
		t.Errorf("allocated = %d, want 100", res.Allocations[0].Allocated)
	}
	if !res.Allocations[1].Omitted {
		t.Error("empty section should be omitted")
	}
	if res.Text != paragraphs(10) {
		t.Errorf("expected full first section, got %q", res.Text)
	}
}

func TestBuildContext_ParagraphsNeverSplit(t *testing.T) {
	text := paragraphs(12)
	res := BuildContext([]Section{bare(content.CurrentPage, 1, 1, text)}, 50)
	body := strings.SplitN(res.Text, "\n\n[...", 2)[0]
	for _, p := range splitParagraphs(body) {
		if len(p) != 38 {
			t.Errorf("paragraph %q was cut", p)
		}
	}
	if !strings.Contains(res.Text, "more paragraphs omitted]") {
		t.Errorf("missing notice:\n%s", res.Text)
	}
}

func TestBuildContext_ReferenceListTruncation(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("- " + strings.Repeat(string(rune('a'+i)), 37) + "\n")
	}
	s := Section{
		Kind:       content.LinkedReferences,
		Priority:   1,
		Share:      1,
		Truncation: TruncateLines,
		Text:       b.String(),
	}
	res := BuildContext([]Section{s}, 100)
	if !strings.HasSuffix(res.Text, "...and 11 more\n") {
		t.Errorf("unexpected tail:\n%s", res.Text)
	}
	if got := strings.Count(res.Text, "- "); got != 9 {
		t.Errorf("kept %d entries, want 9", got)
	}
	if EstimateTokens(res.Text) > 100 {
		t.Errorf("output exceeds allocation: %d", EstimateTokens(res.Text))
	}
}
