package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// fold is the case folding applied to both query and candidate text.
func fold(s string) string {
	return strings.ToLower(s)
}

// Explain classifies how query matches text.
func Explain(query, text string) Match {
	q := fold(strings.TrimSpace(query))
	t := fold(text)
	if q == "" {
		return Match{Tier: TierNone, Index: -1}
	}
	switch {
	case t == q:
		return Match{Tier: TierExact, Index: 0}
	case strings.HasPrefix(t, q):
		return Match{Tier: TierPrefix, Index: 0}
	}
	first := strings.Index(t, q)
	if first < 0 {
		return Match{Tier: TierNone, Index: -1}
	}
	for i := first; i >= 0; {
		if atWordBoundary(t, i) {
			return Match{Tier: TierWordBoundary, Index: i}
		}
		next := strings.Index(t[i+1:], q)
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return Match{Tier: TierSubstring, Index: first}
}

// atWordBoundary reports whether the rune before byte offset i is not a
// letter or digit.
func atWordBoundary(t string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(t[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

type scored struct {
	Candidate
	match  Match
	folded string
	length int
	pos    int
}

func score(query string, candidates []Candidate) []scored {
	out := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		m := Explain(query, c.DisplayText)
		if m.Tier == TierNone {
			continue
		}
		out = append(out, scored{
			Candidate: c,
			match:     m,
			folded:    fold(c.DisplayText),
			length:    utf8.RuneCountInString(c.DisplayText),
			pos:       i,
		})
	}
	return out
}

// textLess orders two scored candidates of any tier by text alone.
func textLess(a, b scored) bool {
	if a.match.Tier != b.match.Tier {
		return a.match.Tier < b.match.Tier
	}
	if a.match.Tier >= TierWordBoundary && a.match.Index != b.match.Index {
		return a.match.Index < b.match.Index
	}
	if a.length != b.length {
		return a.length < b.length
	}
	if a.folded != b.folded {
		return a.folded < b.folded
	}
	if a.DisplayText != b.DisplayText {
		return a.DisplayText < b.DisplayText
	}
	return a.pos < b.pos
}

// Rank returns the candidates that match query, best first. Candidates
// that do not contain the query are dropped. The order is total: equal
// texts keep their input order. A blank query matches nothing.
func Rank(query string, candidates []Candidate) []Candidate {
	s := score(query, candidates)
	sort.Slice(s, func(i, j int) bool { return textLess(s[i], s[j]) })
	out := make([]Candidate, len(s))
	for i := range s {
		out[i] = s[i].Candidate
	}
	return out
}

// kindPriority orders kinds for merged results.
func kindPriority(k Kind) int {
	switch k {
	case KindPage:
		return 0
	case KindDailyNote:
		return 1
	case KindBlock:
		return 2
	default:
		return 3
	}
}

// RankMerged ranks candidates of mixed kinds. Each kind is ranked on its
// own, then the lists are merged: exact and prefix matches come first
// regardless of kind, the rest are grouped by kind (page, daily note,
// block) and keep their per-kind text order.
func RankMerged(query string, candidates []Candidate) []Candidate {
	byKind := make(map[Kind][]Candidate)
	var kinds []Kind
	for _, c := range candidates {
		if _, ok := byKind[c.Kind]; !ok {
			kinds = append(kinds, c.Kind)
		}
		byKind[c.Kind] = append(byKind[c.Kind], c)
	}

	type merged struct {
		scored
		kindRank int
	}
	var all []merged
	for _, k := range kinds {
		s := score(query, byKind[k])
		sort.Slice(s, func(i, j int) bool { return textLess(s[i], s[j]) })
		for i, item := range s {
			all = append(all, merged{scored: item, kindRank: i})
		}
	}

	global := func(t Tier) bool { return t == TierExact || t == TierPrefix }
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		ga, gb := global(a.match.Tier), global(b.match.Tier)
		if ga != gb {
			return ga
		}
		pa, pb := kindPriority(a.Kind), kindPriority(b.Kind)
		if ga {
			if a.match.Tier != b.match.Tier {
				return a.match.Tier < b.match.Tier
			}
			if a.length != b.length {
				return a.length < b.length
			}
			if pa != pb {
				return pa < pb
			}
			if a.Kind == b.Kind {
				return a.kindRank < b.kindRank
			}
			return a.Kind < b.Kind
		}
		if pa != pb {
			return pa < pb
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.kindRank < b.kindRank
	})

	out := make([]Candidate, len(all))
	for i := range all {
		out[i] = all[i].Candidate
	}
	return out
}
