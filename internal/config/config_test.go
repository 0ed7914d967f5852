package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qcrao/copilot/internal/content"
)

func TestDefaultGlobal(t *testing.T) {
	cfg := DefaultGlobal()

	if cfg.Model != "claude-sonnet" {
		t.Errorf("model: got %q, want %q", cfg.Model, "claude-sonnet")
	}
	if cfg.Context.ReserveFraction != 0.7 {
		t.Errorf("reserve fraction: got %f, want 0.7", cfg.Context.ReserveFraction)
	}
	if cfg.Cache.Debounce() != 300*time.Millisecond {
		t.Errorf("debounce: got %v, want 300ms", cfg.Cache.Debounce())
	}
	if cfg.Cache.TTL() != 30*time.Second {
		t.Errorf("ttl: got %v, want 30s", cfg.Cache.TTL())
	}
	if cfg.Vault.DailyNoteFormat != "2006-01-02" {
		t.Errorf("daily note format: got %q", cfg.Vault.DailyNoteFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestBudget(t *testing.T) {
	cfg := DefaultGlobal()
	if got := cfg.Budget(); got != 140000 {
		t.Errorf("budget: got %d, want 140000", got)
	}
	cfg.Context.MaxTokens = 4000
	if got := cfg.Budget(); got != 4000 {
		t.Errorf("budget override: got %d, want 4000", got)
	}
}

func TestSectionSpecs_Overrides(t *testing.T) {
	cfg := DefaultGlobal()
	cfg.Sections = map[string]SectionConfig{
		"linked_references": {Share: 0.05},
		"sidebar_notes":     {Priority: 9},
	}
	specs := cfg.SectionSpecs()
	if specs[content.LinkedReferences].Share != 0.05 {
		t.Errorf("linked share: got %f", specs[content.LinkedReferences].Share)
	}
	if specs[content.LinkedReferences].Priority != 4 {
		t.Errorf("linked priority should keep default, got %d", specs[content.LinkedReferences].Priority)
	}
	if specs[content.SidebarNotes].Priority != 9 {
		t.Errorf("sidebar priority: got %d", specs[content.SidebarNotes].Priority)
	}
	if specs[content.CurrentPage].Share != 0.40 {
		t.Errorf("current page share: got %f", specs[content.CurrentPage].Share)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*GlobalConfig){
		"unknown model":    func(c *GlobalConfig) { c.Model = "nope" },
		"reserve too big":  func(c *GlobalConfig) { c.Context.ReserveFraction = 1 },
		"zero debounce":    func(c *GlobalConfig) { c.Cache.DebounceMs = 0 },
		"zero capacity":    func(c *GlobalConfig) { c.Cache.Capacity = 0 },
		"bad log level":    func(c *GlobalConfig) { c.LogLevel = "loud" },
		"unknown section":  func(c *GlobalConfig) { c.Sections = map[string]SectionConfig{"footer": {Share: 0.1}} },
		"shares over one":  func(c *GlobalConfig) { c.Sections = map[string]SectionConfig{"current_page": {Share: 0.9}} },
		"share above one":  func(c *GlobalConfig) { c.Sections = map[string]SectionConfig{"current_page": {Share: 1.5}} },
		"no daily pattern": func(c *GlobalConfig) { c.Vault.DailyNoteFormat = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultGlobal()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidate_UnknownModelWithMaxTokens(t *testing.T) {
	cfg := DefaultGlobal()
	cfg.Model = "local"
	cfg.Context.MaxTokens = 2000
	if err := cfg.Validate(); err != nil {
		t.Errorf("explicit max_tokens should not need a model window: %v", err)
	}
}

func TestPaths(t *testing.T) {
	root := "/home/user/vault"
	if got, want := ProjectDBPath(root), filepath.Join(root, ".copilot", "index.db"); got != want {
		t.Errorf("db path: got %q, want %q", got, want)
	}
	if got, want := StatePath(root), filepath.Join(root, ".copilot", "state.yaml"); got != want {
		t.Errorf("state path: got %q, want %q", got, want)
	}
	if got, want := ProjectConfigDirPath(root), filepath.Join(root, ".copilot"); got != want {
		t.Errorf("config dir: got %q, want %q", got, want)
	}
}

func TestLoadProject_NoFile(t *testing.T) {
	cfg, err := LoadProject(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model != "" {
		t.Errorf("expected empty model, got %q", cfg.Model)
	}
}

func TestSaveAndLoadProject(t *testing.T) {
	dir := t.TempDir()
	cfg := ProjectConfig{
		Model:    "gpt-4o",
		Sections: map[string]SectionConfig{"current_page": {Priority: 1, Share: 0.3}},
		Ignore:   []string{"archive/"},
	}

	if err := SaveProject(dir, cfg); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	loaded, err := LoadProject(dir)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if loaded.Model != "gpt-4o" {
		t.Errorf("model: got %q, want %q", loaded.Model, "gpt-4o")
	}
	if loaded.Sections["current_page"].Share != 0.3 {
		t.Errorf("section share: got %f", loaded.Sections["current_page"].Share)
	}
	if len(loaded.Ignore) != 1 || loaded.Ignore[0] != "archive/" {
		t.Errorf("ignore: got %v", loaded.Ignore)
	}
}

func TestLoad_MergesProjectOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	if err := SaveProject(dir, ProjectConfig{Model: "gpt-4o", Context: ContextConfig{VisibleBlocks: 5}, Ignore: []string{"archive/"}}); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("expected project override 'gpt-4o', got %q", cfg.Model)
	}
	if cfg.Context.VisibleBlocks != 5 {
		t.Errorf("visible blocks: got %d, want 5", cfg.Context.VisibleBlocks)
	}
	if cfg.Context.ReserveFraction != 0.7 {
		t.Errorf("reserve fraction should keep default, got %f", cfg.Context.ReserveFraction)
	}
	if cfg.Vault.Path != dir {
		t.Errorf("vault path: got %q, want %q", cfg.Vault.Path, dir)
	}
	if len(cfg.Vault.Ignore) != 1 || cfg.Vault.Ignore[0] != "archive/" {
		t.Errorf("ignore patterns: got %v", cfg.Vault.Ignore)
	}
}

func TestLoad_InvalidProjectConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	if err := SaveProject(dir, ProjectConfig{Model: "unknown-model"}); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadGlobal_FromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".config", "copilot", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data := "model = \"local\"\n\n[models]\nlocal = 32000\n\n[cache]\nttl_ms = 1000\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Model != "local" || cfg.ContextWindow() != 32000 {
		t.Errorf("model %q window %d", cfg.Model, cfg.ContextWindow())
	}
	if cfg.Cache.TTLMs != 1000 {
		t.Errorf("ttl: got %d, want 1000", cfg.Cache.TTLMs)
	}
	if cfg.Cache.DebounceMs != 300 {
		t.Errorf("debounce should keep default, got %d", cfg.Cache.DebounceMs)
	}
	if cfg.ContextWindow() == 0 || cfg.Models["gpt-4o"] != 128000 {
		t.Error("file models should merge with defaults")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COPILOT_VAULT", "/tmp/vault")
	t.Setenv("COPILOT_LOG_LEVEL", "debug")

	cfg := DefaultGlobal()
	cfg.ApplyEnv()
	if cfg.Vault.Path != "/tmp/vault" {
		t.Errorf("vault path: got %q", cfg.Vault.Path)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level: got %v", cfg.SlogLevel())
	}
}

func TestGlobalConfigPath(t *testing.T) {
	path, err := GlobalConfigPath()
	if err != nil {
		t.Fatalf("GlobalConfigPath: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("expected config.toml, got %q", filepath.Base(path))
	}
}

func TestString(t *testing.T) {
	s := DefaultGlobal().String()
	if !strings.Contains(s, "reserve_fraction = 0.7") {
		t.Errorf("missing reserve_fraction in:\n%s", s)
	}
}
