package content

import "fmt"

// SectionKind names a bundle of content that competes for the context
// budget.
type SectionKind int

const (
	CurrentPage SectionKind = iota + 1
	VisibleContent
	SidebarNotes
	LinkedReferences
)

// SectionKinds lists every kind in default priority order.
var SectionKinds = []SectionKind{CurrentPage, VisibleContent, SidebarNotes, LinkedReferences}

// String returns the snake_case name used in config files and JSON.
func (k SectionKind) String() string {
	switch k {
	case CurrentPage:
		return "current_page"
	case VisibleContent:
		return "visible_content"
	case SidebarNotes:
		return "sidebar_notes"
	case LinkedReferences:
		return "linked_references"
	default:
		return fmt.Sprintf("section(%d)", int(k))
	}
}

// Title returns the human-readable heading for the kind.
func (k SectionKind) Title() string {
	switch k {
	case CurrentPage:
		return "Current Page"
	case VisibleContent:
		return "Visible Content"
	case SidebarNotes:
		return "Sidebar Notes"
	case LinkedReferences:
		return "Linked References"
	default:
		return k.String()
	}
}

// ParseSectionKind is the inverse of String.
func ParseSectionKind(s string) (SectionKind, error) {
	for _, k := range SectionKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("content: unknown section kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k SectionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SectionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseSectionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
