// Package config manages global (~/.config/copilot/config.toml) and
// per-vault (.copilot/config.toml) configuration for Copilot.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/qcrao/copilot/internal/content"
	ctxpkg "github.com/qcrao/copilot/internal/context"
)

// GlobalConfig holds user-wide settings.
type GlobalConfig struct {
	LogLevel string                   `toml:"log_level"`
	Model    string                   `toml:"model"`
	Models   map[string]int           `toml:"models"`
	Context  ContextConfig            `toml:"context"`
	Sections map[string]SectionConfig `toml:"sections"`
	Cache    CacheConfig              `toml:"cache"`
	Vault    VaultConfig              `toml:"vault"`
	Search   SearchConfig             `toml:"search"`
	Serve    ServeConfig              `toml:"serve"`
}

// ContextConfig controls how the context budget is derived.
type ContextConfig struct {
	// ReserveFraction is the share of the model window given to context;
	// the rest is left for the reply.
	ReserveFraction float64 `toml:"reserve_fraction"`
	// MaxTokens, when positive, overrides the derived budget.
	MaxTokens int `toml:"max_tokens"`
	// VisibleBlocks is how many top-level blocks of the current page
	// count as on screen.
	VisibleBlocks int `toml:"visible_blocks"`
}

// SectionConfig overrides the budgeting parameters of one section kind.
type SectionConfig struct {
	Priority int     `toml:"priority"`
	Share    float64 `toml:"share"`
}

type CacheConfig struct {
	TTLMs      int `toml:"ttl_ms"`
	DebounceMs int `toml:"debounce_ms"`
	Capacity   int `toml:"capacity"`
}

type VaultConfig struct {
	Path            string `toml:"path"`
	DailyNoteFormat string `toml:"daily_note_format"`
	// Ignore adds gitignore-style patterns to .copilotignore.
	Ignore []string `toml:"ignore,omitempty"`
}

type SearchConfig struct {
	Limit int `toml:"limit"`
}

type ServeConfig struct {
	HTTPAddr string `toml:"http_addr"`
}

// ProjectConfig holds per-vault overrides stored in .copilot/config.toml.
type ProjectConfig struct {
	Model    string                   `toml:"model"`
	Context  ContextConfig            `toml:"context"`
	Sections map[string]SectionConfig `toml:"sections"`
	Vault    VaultConfig              `toml:"vault"`
	Ignore   []string                 `toml:"ignore"`
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		LogLevel: "info",
		Model:    "claude-sonnet",
		Models: map[string]int{
			"claude-sonnet": 200000,
			"claude-haiku":  200000,
			"gpt-4o":        128000,
			"gpt-4o-mini":   128000,
			"llama3.2":      8192,
		},
		Context: ContextConfig{
			ReserveFraction: 0.7,
			VisibleBlocks:   20,
		},
		Cache: CacheConfig{
			TTLMs:      30000,
			DebounceMs: 300,
			Capacity:   256,
		},
		Vault: VaultConfig{
			DailyNoteFormat: "2006-01-02",
		},
		Search: SearchConfig{
			Limit: 20,
		},
		Serve: ServeConfig{
			HTTPAddr: ":8080",
		},
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "copilot", "config.toml"), nil
}

// LoadGlobal loads the global config, applying defaults for any missing values.
func LoadGlobal() (GlobalConfig, error) {
	cfg := DefaultGlobal()

	path, err := GlobalConfigPath()
	if err != nil {
		return cfg, nil // Return defaults if we can't determine home dir.
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: load global: %w", err)
	}
	return cfg, nil
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg GlobalConfig) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	return writeTOML(path, cfg)
}

// LoadProject loads .copilot/config.toml from the given vault root.
func LoadProject(root string) (ProjectConfig, error) {
	var cfg ProjectConfig
	path := filepath.Join(ProjectConfigDirPath(root), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: load project: %w", err)
	}
	return cfg, nil
}

// SaveProject writes the project config to .copilot/config.toml.
func SaveProject(root string, cfg ProjectConfig) error {
	return writeTOML(filepath.Join(ProjectConfigDirPath(root), "config.toml"), cfg)
}

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(v)
}

// ProjectConfigDirPath returns the path to the vault's .copilot/ directory.
func ProjectConfigDirPath(root string) string {
	return filepath.Join(root, ".copilot")
}

// ProjectDBPath returns the path to the vault's SQLite search index.
func ProjectDBPath(root string) string {
	return filepath.Join(ProjectConfigDirPath(root), "index.db")
}

// StatePath returns the path to the file naming the current and sidebar pages.
func StatePath(root string) string {
	return filepath.Join(ProjectConfigDirPath(root), "state.yaml")
}

// Load returns the effective config for a vault root: defaults, then the
// global file, then the vault's project file, then environment variables.
// The result is validated.
func Load(root string) (GlobalConfig, error) {
	global, err := LoadGlobal()
	if err != nil {
		return global, err
	}

	project, err := LoadProject(root)
	if err != nil {
		return global, err
	}
	global.Merge(project)
	global.ApplyEnv()

	if global.Vault.Path == "" {
		global.Vault.Path = root
	}
	if err := global.Validate(); err != nil {
		return global, fmt.Errorf("config: %w", err)
	}
	return global, nil
}

// Merge applies non-zero project overrides.
func (c *GlobalConfig) Merge(p ProjectConfig) {
	if p.Model != "" {
		c.Model = p.Model
	}
	if p.Context.ReserveFraction != 0 {
		c.Context.ReserveFraction = p.Context.ReserveFraction
	}
	if p.Context.MaxTokens != 0 {
		c.Context.MaxTokens = p.Context.MaxTokens
	}
	if p.Context.VisibleBlocks != 0 {
		c.Context.VisibleBlocks = p.Context.VisibleBlocks
	}
	if len(p.Sections) > 0 && c.Sections == nil {
		c.Sections = make(map[string]SectionConfig, len(p.Sections))
	}
	for k, v := range p.Sections {
		c.Sections[k] = v
	}
	if p.Vault.Path != "" {
		c.Vault.Path = p.Vault.Path
	}
	if p.Vault.DailyNoteFormat != "" {
		c.Vault.DailyNoteFormat = p.Vault.DailyNoteFormat
	}
	c.Vault.Ignore = append(c.Vault.Ignore, p.Vault.Ignore...)
	c.Vault.Ignore = append(c.Vault.Ignore, p.Ignore...)
}

// ApplyEnv lets COPILOT_* environment variables override file settings.
func (c *GlobalConfig) ApplyEnv() {
	if v := os.Getenv("COPILOT_VAULT"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("COPILOT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("COPILOT_MODEL"); v != "" {
		c.Model = v
	}
}

// SlogLevel converts LogLevel into a slog.Level, defaulting to info.
func (c GlobalConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ContextWindow returns the context window of the configured model.
func (c GlobalConfig) ContextWindow() int {
	return c.Models[c.Model]
}

// Budget returns the token budget for the assembled context.
func (c GlobalConfig) Budget() int {
	if c.Context.MaxTokens > 0 {
		return c.Context.MaxTokens
	}
	return ctxpkg.BudgetFor(c.ContextWindow(), c.Context.ReserveFraction)
}

// SectionSpecs returns the default section parameters with any
// configured overrides applied.
func (c GlobalConfig) SectionSpecs() map[content.SectionKind]ctxpkg.Spec {
	specs := ctxpkg.DefaultSpecs()
	for name, sc := range c.Sections {
		kind, err := content.ParseSectionKind(name)
		if err != nil {
			continue // rejected by Validate
		}
		spec := specs[kind]
		if sc.Priority != 0 {
			spec.Priority = sc.Priority
		}
		if sc.Share != 0 {
			spec.Share = sc.Share
		}
		specs[kind] = spec
	}
	return specs
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// Debounce returns the change-signal debounce window.
func (c CacheConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ModelNames returns configured model names in sorted order.
func (c GlobalConfig) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for n := range c.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String renders the effective configuration as TOML.
func (c GlobalConfig) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("config: encode: %v", err)
	}
	return b.String()
}
