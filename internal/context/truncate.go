package context

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// paragraphFill is the fraction of an allocation paragraphs may fill
// before the omission notice is added.
const paragraphFill = 0.9

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.Trim(p, "\n")
		if isBlank(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func paragraphNotice(omitted int) string {
	return fmt.Sprintf("[... %d more paragraphs omitted]", omitted)
}

// truncateParagraphs keeps whole leading paragraphs while the section
// stays under paragraphFill of alloc, then names how many were dropped.
// Paragraphs are dropped from the end until body and notice fit.
func truncateParagraphs(text string, alloc, headerTokens int) string {
	paras := splitParagraphs(text)
	limit := paragraphFill * float64(alloc)

	kept := 0
	for kept < len(paras) {
		candidate := strings.Join(paras[:kept+1], "\n\n")
		if float64(headerTokens+EstimateTokens(candidate)) >= limit {
			break
		}
		kept++
	}

	for ; kept > 0; kept-- {
		body := strings.Join(paras[:kept], "\n\n") + "\n"
		if omitted := len(paras) - kept; omitted > 0 {
			body += "\n" + paragraphNotice(omitted) + "\n"
		}
		if headerTokens+EstimateTokens(body) <= alloc {
			return body
		}
	}
	return ""
}

func nonBlankLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if isBlank(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// truncateLines keeps the first floor(alloc/averageLineTokens) entries of
// a one-entry-per-line list and appends how many were left out.
func truncateLines(text string, alloc, headerTokens int) string {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return ""
	}
	avg := float64(EstimateTokens(strings.Join(lines, "\n"))) / float64(len(lines))
	keep := min(int(math.Floor(float64(alloc)/avg)), len(lines))

	for ; keep > 0; keep-- {
		body := strings.Join(lines[:keep], "\n") + "\n"
		if omitted := len(lines) - keep; omitted > 0 {
			body += fmt.Sprintf("...and %d more\n", omitted)
		}
		if headerTokens+EstimateTokens(body) <= alloc {
			return body
		}
	}
	return ""
}
