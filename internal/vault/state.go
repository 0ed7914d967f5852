package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/qcrao/copilot/internal/config"
)

// State names what the user is looking at. Hosts write it; the vault
// reads it on every build.
type State struct {
	// Current is the title of the open page. Empty means today's daily
	// note.
	Current string   `yaml:"current,omitempty"`
	Sidebar []string `yaml:"sidebar,omitempty"`
	// Visible lists on-screen block UIDs of the current page. Empty means
	// the first VisibleBlocks top-level blocks.
	Visible []string `yaml:"visible,omitempty"`
}

// LoadState reads .copilot/state.yaml. A missing file yields the zero State.
func LoadState(root string) (State, error) {
	var s State
	data, err := os.ReadFile(config.StatePath(root))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("vault: read state: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("vault: parse state: %w", err)
	}
	return s, nil
}

// SaveState writes .copilot/state.yaml.
func SaveState(root string, s State) error {
	path := config.StatePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("vault: encode state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("vault: write state: %w", err)
	}
	return nil
}
