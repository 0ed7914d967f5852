package search

import (
	"reflect"
	"testing"
)

func pages(texts ...string) []Candidate {
	out := make([]Candidate, len(texts))
	for i, t := range texts {
		out[i] = Candidate{Kind: KindPage, UID: t, DisplayText: t}
	}
	return out
}

func texts(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.DisplayText
	}
	return out
}

func TestExplain_Tiers(t *testing.T) {
	cases := []struct {
		query, text string
		tier        Tier
		index       int
	}{
		{"pro", "Pro", TierExact, 0},
		{"Pro", "project orion notes", TierPrefix, 0},
		{"orion", "Project Orion", TierWordBoundary, 8},
		{"orion", "Project-orion", TierWordBoundary, 8},
		{"rio", "Project Orion", TierSubstring, 9},
		{"xyz", "Project Orion", TierNone, -1},
		{"  ", "anything", TierNone, -1},
	}
	for _, c := range cases {
		got := Explain(c.query, c.text)
		if got.Tier != c.tier || got.Index != c.index {
			t.Errorf("Explain(%q, %q) = %v@%d, want %v@%d", c.query, c.text, got.Tier, got.Index, c.tier, c.index)
		}
	}
}

func TestExplain_LaterBoundaryOccurrence(t *testing.T) {
	// First occurrence is mid-word, a later one starts a word.
	got := Explain("cat", "concat cat")
	if got.Tier != TierWordBoundary || got.Index != 7 {
		t.Errorf("got %v@%d, want word@7", got.Tier, got.Index)
	}
}

func TestRank_ExactThenPrefixByLength(t *testing.T) {
	// "Process" is a prefix match too, and the shortest one, so it ranks
	// ahead of "Project Orion". The order sometimes quoted for this input,
	// Pro, Project Orion, project orion notes, Process, treats "Process"
	// as a plain substring and contradicts shorter-prefix-first.
	got := texts(Rank("Pro", pages("Project Orion", "Pro", "Process", "project orion notes")))
	want := []string{"Pro", "Process", "Project Orion", "project orion notes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRank_DropsNonMatches(t *testing.T) {
	got := Rank("zeta", pages("alpha", "beta"))
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", texts(got))
	}
}

func TestRank_WordBoundaryBeforeSubstring(t *testing.T) {
	got := texts(Rank("note", pages("footnotes", "daily notes", "keynote")))
	want := []string{"daily notes", "keynote", "footnotes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRank_SubstringByIndex(t *testing.T) {
	got := texts(Rank("x", pages("aaax", "ax", "aax")))
	want := []string{"ax", "aax", "aaax"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRank_TieBreakLexicographic(t *testing.T) {
	got := texts(Rank("a", pages("ac", "Ab", "ab")))
	// Folded "ab" ties; raw "Ab" < "ab".
	want := []string{"Ab", "ab", "ac"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRank_DuplicatesKeepInsertionOrder(t *testing.T) {
	in := []Candidate{
		{Kind: KindBlock, UID: "b1", DisplayText: "same"},
		{Kind: KindBlock, UID: "b2", DisplayText: "same"},
		{Kind: KindBlock, UID: "b3", DisplayText: "same"},
	}
	got := Rank("same", in)
	for i, uid := range []string{"b1", "b2", "b3"} {
		if got[i].UID != uid {
			t.Errorf("position %d: got %s, want %s", i, got[i].UID, uid)
		}
	}
}

func TestRank_Deterministic(t *testing.T) {
	in := pages("Orion", "orion", "ORION", "Orion belt", "the orion")
	first := Rank("orion", in)
	for i := 0; i < 20; i++ {
		if got := Rank("orion", in); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, texts(got), texts(first))
		}
	}
}

func TestRankMerged_GlobalExactThenKindPriority(t *testing.T) {
	in := []Candidate{
		{Kind: KindBlock, UID: "b1", DisplayText: "orion"},
		{Kind: KindPage, UID: "p1", DisplayText: "About orion"},
		{Kind: KindDailyNote, UID: "d1", DisplayText: "met orion team"},
		{Kind: KindBlock, UID: "b2", DisplayText: "orion launch"},
		{Kind: KindPage, UID: "p2", DisplayText: "Orion"},
	}
	got := RankMerged("orion", in)
	var uids []string
	for _, c := range got {
		uids = append(uids, c.UID)
	}
	// Exact (page before block on equal length), prefix, then page, daily, block.
	want := []string{"p2", "b1", "b2", "p1", "d1"}
	if !reflect.DeepEqual(uids, want) {
		t.Errorf("got %v, want %v", uids, want)
	}
}

func TestRankMerged_NonGlobalGroupedByKind(t *testing.T) {
	in := []Candidate{
		{Kind: KindBlock, UID: "b", DisplayText: "x orion"},
		{Kind: KindDailyNote, UID: "d", DisplayText: "a very long note about orion"},
		{Kind: KindPage, UID: "p", DisplayText: "the long page on orion things"},
	}
	got := RankMerged("orion", in)
	want := []string{"p", "d", "b"}
	for i, uid := range want {
		if got[i].UID != uid {
			t.Errorf("position %d: got %s, want %s", i, got[i].UID, uid)
		}
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindPage, KindDailyNote, KindBlock} {
		b, _ := k.MarshalText()
		var back Kind
		if err := back.UnmarshalText(b); err != nil || back != k {
			t.Errorf("round trip %v: got %v, err %v", k, back, err)
		}
	}
	if _, err := ParseKind("nope"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
