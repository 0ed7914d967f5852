package vault

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile lists gitignore-style patterns for files the vault skips.
const IgnoreFile = ".copilotignore"

// IgnoreMatcher wraps a gitignore pattern matcher.
type IgnoreMatcher struct {
	gi *gitignore.GitIgnore
}

// NewIgnoreMatcher loads .copilotignore from the vault root and adds any
// extra patterns. Without either, the matcher accepts everything.
func NewIgnoreMatcher(root string, extra ...string) *IgnoreMatcher {
	path := filepath.Join(root, IgnoreFile)
	if _, err := os.Stat(path); err == nil {
		if gi, err := gitignore.CompileIgnoreFileAndLines(path, extra...); err == nil {
			return &IgnoreMatcher{gi: gi}
		}
	}
	if len(extra) > 0 {
		return &IgnoreMatcher{gi: gitignore.CompileIgnoreLines(extra...)}
	}
	return &IgnoreMatcher{}
}

// Match returns true if the given slash-separated relative path should be
// ignored.
func (m *IgnoreMatcher) Match(relPath string) bool {
	if m == nil || m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(relPath)
}

// hardIgnored contains directories that are always skipped.
var hardIgnored = map[string]bool{
	"node_modules": true,
	".git":         true,
	".trash":       true,
	".obsidian":    true,
	".copilot":     true,
}

// HardIgnore returns true if the directory name is always excluded.
// Hidden directories are excluded as well.
func HardIgnore(name string) bool {
	return hardIgnored[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// skipped reports whether rel, or any directory above it, is excluded.
func (m *IgnoreMatcher) skipped(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if HardIgnore(p) {
			return true
		}
	}
	return m.Match(rel)
}
