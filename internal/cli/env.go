package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/qcrao/copilot/internal/assistant"
	"github.com/qcrao/copilot/internal/config"
	"github.com/qcrao/copilot/internal/index"
	"github.com/qcrao/copilot/internal/vault"
)

// env is what every command needs: the effective config, a logger and
// the open vault.
type env struct {
	cfg    config.GlobalConfig
	logger *slog.Logger
	vault  *vault.Vault
	flags  *globalFlags
}

// loadEnv resolves the vault root, loads config and opens the vault.
// An explicit --vault wins over config and environment.
func loadEnv(cmd *cobra.Command, flags *globalFlags) (*env, error) {
	root := flags.vault
	if root == "" {
		var err error
		if root, err = findRoot(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if flags.vault != "" {
		cfg.Vault.Path = root
	}

	level := cfg.SlogLevel()
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	v, err := vault.Open(cfg.Vault.Path, vault.Options{
		DailyNoteFormat: cfg.Vault.DailyNoteFormat,
		VisibleBlocks:   cfg.Context.VisibleBlocks,
		Ignore:          cfg.Vault.Ignore,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("vault opened", slog.String("root", v.Root()), slog.Int("budget", cfg.Budget()))
	return &env{cfg: cfg, logger: logger, vault: v, flags: flags}, nil
}

// service builds the assistant over the vault. Without searchers the
// vault is scanned directly.
func (e *env) service(searchers ...assistant.SearchSource) (*assistant.Service, error) {
	if len(searchers) == 0 {
		searchers = []assistant.SearchSource{e.vault}
	}
	return assistant.New(assistant.Options{
		Content:     e.vault,
		Search:      searchers,
		Specs:       e.cfg.SectionSpecs(),
		Budget:      e.cfg.Budget(),
		SearchLimit: e.cfg.Search.Limit,
		TTL:         e.cfg.Cache.TTL(),
		Debounce:    e.cfg.Cache.Debounce(),
		Capacity:    e.cfg.Cache.Capacity,
		Logger:      e.logger,
	})
}

// dbPath is where the vault's search index lives.
func (e *env) dbPath() string {
	return config.ProjectDBPath(e.vault.Root())
}

// openIndex opens the search index if `copilot index` has created one.
// It returns nil without error when there is none.
func (e *env) openIndex() (*index.Index, error) {
	if _, err := os.Stat(e.dbPath()); os.IsNotExist(err) {
		return nil, nil
	}
	ix, err := index.Open(e.dbPath(), e.logger)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return ix, nil
}

// searchSources prefers the index and falls back to scanning the vault.
// The returned function releases the index.
func (e *env) searchSources() ([]assistant.SearchSource, func()) {
	ix, err := e.openIndex()
	if err != nil {
		e.logger.Warn("index unavailable, scanning vault", slog.String("error", err.Error()))
	}
	if ix == nil {
		return []assistant.SearchSource{e.vault}, func() {}
	}
	return []assistant.SearchSource{ix}, func() { _ = ix.Close() }
}

// syncIndex brings ix up to date with the vault.
func (e *env) syncIndex(ctx context.Context, ix *index.Index, progress func(done, total int)) (index.SyncStats, error) {
	docs, err := e.vault.Documents(ctx)
	if err != nil {
		return index.SyncStats{}, err
	}
	return ix.Sync(ctx, docs, progress)
}

// syncOnChange resyncs ix once changes from w have been quiet for
// debounce. The returned function stops it.
func (e *env) syncOnChange(ctx context.Context, w *vault.Watcher, ix *index.Index, debounce time.Duration) (stop func()) {
	var mu sync.Mutex
	var timer *time.Timer
	unregister := w.OnRawChangeSignal(func(string) {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			stats, err := e.syncIndex(ctx, ix, nil)
			if err != nil {
				e.logger.Warn("index sync failed", slog.String("error", err.Error()))
				return
			}
			e.logger.Debug("index synced",
				slog.Int("added", stats.Added), slog.Int("updated", stats.Updated), slog.Int("removed", stats.Removed))
		})
	})
	return func() {
		unregister()
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}
}

// findRoot returns the nearest directory at or above the working
// directory that contains .copilot/, or the working directory itself.
func findRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	dir, _ := filepath.Abs(cwd)
	for {
		if info, err := os.Stat(config.ProjectConfigDirPath(dir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd, nil
}
