package context

import (
	"math"
	"sort"
	"strings"
)

// BuildContext fits sections into budget tokens and returns the combined
// text. Sections are emitted in priority order. Unused allocation from
// sections that need less than their share is handed to higher priority
// sections first; a section that still does not fit is truncated with a
// notice. The result is a pure function of its inputs.
//
// A non-positive budget or a set of empty sections yields empty text.
func BuildContext(sections []Section, budget int) Result {
	res := Result{Budget: budget}
	if budget <= 0 || allEmpty(sections) {
		return res
	}

	order := priorityOrder(sections)
	allocated := make([]int, len(sections))
	needed := make([]int, len(sections))

	// Initial allocation.
	for i, s := range sections {
		allocated[i] = int(math.Floor(float64(budget)*s.Share + 1e-9))
		if allocated[i] < 0 {
			allocated[i] = 0
		}
	}

	// Surplus collection.
	surplus := 0
	for i, s := range sections {
		needed[i] = neededTokens(s)
		if needed[i] < allocated[i] {
			surplus += allocated[i] - needed[i]
			allocated[i] = needed[i]
		}
	}

	// Redistribution, highest priority first.
	for _, i := range order {
		if surplus == 0 {
			break
		}
		if deficit := needed[i] - allocated[i]; deficit > 0 {
			grant := min(deficit, surplus)
			allocated[i] += grant
			surplus -= grant
		}
	}

	// Emission.
	var out strings.Builder
	stopped := false
	for _, i := range order {
		s := sections[i]
		a := Allocation{
			Kind:      s.Kind,
			Priority:  s.Priority,
			Needed:    needed[i],
			Allocated: allocated[i],
		}
		if needed[i] == 0 {
			a.Omitted = true
			res.Allocations = append(res.Allocations, a)
			continue
		}
		if stopped {
			a.Omitted = true
			res.Allocations = append(res.Allocations, a)
			continue
		}

		piece, truncated, ok := fitSection(s, allocated[i])
		if !ok {
			a.Omitted = true
			res.Allocations = append(res.Allocations, a)
			continue
		}

		// Pieces are joined as is; Header carries any spacing between
		// sections so it is paid for out of the section's own allocation.
		if EstimateTokens(out.String()+piece) > budget {
			stopped = true
			a.Omitted = true
			res.Allocations = append(res.Allocations, a)
			continue
		}
		out.WriteString(piece)
		a.Used = EstimateTokens(piece)
		a.Truncated = truncated
		res.Allocations = append(res.Allocations, a)
	}

	res.Text = out.String()
	res.TokensUsed = EstimateTokens(res.Text)
	return res
}

func allEmpty(sections []Section) bool {
	for _, s := range sections {
		if !isBlank(s.Text) {
			return false
		}
	}
	return true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// neededTokens is what a section costs when emitted in full. Blank
// sections need nothing and are never emitted.
func neededTokens(s Section) int {
	if isBlank(s.Text) {
		return 0
	}
	return EstimateTokens(s.Header) + EstimateTokens(s.Text)
}

// priorityOrder returns section indexes sorted by priority, keeping input
// order between equal priorities.
func priorityOrder(sections []Section) []int {
	order := make([]int, len(sections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sections[order[a]].Priority < sections[order[b]].Priority
	})
	return order
}

// fitSection renders s within alloc tokens. ok is false when nothing
// beyond the header would fit.
func fitSection(s Section, alloc int) (piece string, truncated, ok bool) {
	headerTokens := EstimateTokens(s.Header)
	if headerTokens > alloc {
		return "", false, false
	}
	if headerTokens+EstimateTokens(s.Text) <= alloc {
		return s.Header + s.Text, false, true
	}

	var body string
	switch s.Truncation {
	case TruncateLines:
		body = truncateLines(s.Text, alloc, headerTokens)
	default:
		body = truncateParagraphs(s.Text, alloc, headerTokens)
	}
	if body == "" {
		return "", false, false
	}
	return s.Header + body, true, true
}
