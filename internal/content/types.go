// Package content defines the immutable text tree that content sources
// hand to the context engine.
package content

import "sort"

// Block is the smallest addressable unit of text. Children are exclusively
// owned and ordered by Order.
type Block struct {
	UID      string  `json:"uid"`
	Text     string  `json:"text"`
	Children []Block `json:"children,omitempty"`
	Order    int     `json:"order"`
}

// Page is a named root container of blocks.
type Page struct {
	Title  string  `json:"title"`
	UID    string  `json:"uid"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Ref points at on-screen content. BlockUID is empty when a whole page is
// visible.
type Ref struct {
	PageUID  string `json:"page_uid"`
	BlockUID string `json:"block_uid,omitempty"`
}

// IsEmpty reports whether the page has neither a title nor blocks.
func (p Page) IsEmpty() bool {
	return p.Title == "" && len(p.Blocks) == 0
}

// SortedChildren returns blocks ordered by Order. Ties keep their input
// order. The input slice is never modified.
func SortedChildren(blocks []Block) []Block {
	if len(blocks) < 2 {
		return blocks
	}
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// Walk visits blocks depth-first in Order order. fn receives the block and
// its depth (0 for top level); returning false skips the block's children.
func Walk(blocks []Block, fn func(b Block, depth int) bool) {
	walk(blocks, 0, fn)
}

func walk(blocks []Block, depth int, fn func(b Block, depth int) bool) {
	for _, b := range SortedChildren(blocks) {
		if fn(b, depth) {
			walk(b.Children, depth+1, fn)
		}
	}
}

// Find returns the block with the given UID anywhere in the tree.
func Find(blocks []Block, uid string) (Block, bool) {
	var found Block
	ok := false
	Walk(blocks, func(b Block, _ int) bool {
		if ok {
			return false
		}
		if b.UID == uid {
			found, ok = b, true
			return false
		}
		return true
	})
	return found, ok
}
