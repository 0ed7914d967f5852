// Package search orders search candidates against a query with a
// deterministic, explainable relevance ranking.
package search

import "fmt"

// Kind classifies a search candidate.
type Kind int

const (
	KindPage Kind = iota
	KindDailyNote
	KindBlock
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindDailyNote:
		return "daily_note"
	case KindBlock:
		return "block"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "page":
		return KindPage, nil
	case "daily_note":
		return KindDailyNote, nil
	case "block":
		return KindBlock, nil
	}
	return 0, fmt.Errorf("search: unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Candidate is one item that may be offered for a query.
type Candidate struct {
	Kind            Kind   `json:"kind"`
	UID             string `json:"uid"`
	DisplayText     string `json:"display_text"`
	ParentPageTitle string `json:"parent_page_title,omitempty"`
}

// Tier is the match class of a candidate, best first.
type Tier int

const (
	TierExact Tier = iota
	TierPrefix
	TierWordBoundary
	TierSubstring
	TierNone
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPrefix:
		return "prefix"
	case TierWordBoundary:
		return "word"
	case TierSubstring:
		return "substring"
	default:
		return "none"
	}
}

// Match explains where a query matched a candidate text.
type Match struct {
	Tier Tier
	// Index is the byte offset of the match in the case-folded text, or
	// -1 when there is no match.
	Index int
}
