// Package context assembles the bounded context blob sent along with a
// model request: it formats content into prioritized sections and fits
// them into a token budget.
package context

import (
	"fmt"
	"math"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// EstimateTokens is the budgeting heuristic: one token per four bytes,
// rounded up. All allocation decisions use it.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// BudgetFor derives the context budget from a model's context window,
// leaving the rest of the window for the reply.
func BudgetFor(contextWindow int, reserveFraction float64) int {
	if contextWindow <= 0 || reserveFraction <= 0 {
		return 0
	}
	return int(math.Floor(float64(contextWindow)*reserveFraction + 1e-9))
}

// Tokenizer wraps tiktoken for an exact count. It is only used for
// diagnostics; allocation never depends on it.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer creates a Tokenizer using the cl100k_base encoding.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the number of cl100k_base tokens in s.
func (t *Tokenizer) Count(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}

// Drift reports how far the heuristic estimate is from the exact count,
// as a signed fraction of the exact count.
func (t *Tokenizer) Drift(s string) (estimate, exact int, drift float64) {
	estimate = EstimateTokens(s)
	exact = t.Count(s)
	if exact == 0 {
		return estimate, exact, 0
	}
	return estimate, exact, float64(estimate-exact) / float64(exact)
}
