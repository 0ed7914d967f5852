package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/qcrao/copilot/internal/api"
	"github.com/qcrao/copilot/internal/assistant"
	"github.com/qcrao/copilot/internal/mcp"
	"github.com/qcrao/copilot/internal/vault"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var serveMCP bool
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve context and search over MCP (stdio) or HTTP",
		Long: `Run a long-lived server that keeps the context cache warm while the
vault changes.

  --mcp          MCP server on stdin/stdout with build_context and search tools
  --http ADDR    HTTP API: GET /health, /api/context, /api/search

With neither flag, the HTTP API listens on serve.http_addr from config.

Examples:
  copilot serve --mcp
  copilot serve --http :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("http") && httpAddr == "" {
				return fmt.Errorf("--http needs an address")
			}
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			if !serveMCP && httpAddr == "" {
				httpAddr = e.cfg.Serve.HTTPAddr
			}
			return e.serve(cmd.Context(), serveMCP, httpAddr)
		},
	}

	cmd.Flags().BoolVar(&serveMCP, "mcp", false, "serve MCP over stdio")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve the HTTP API on this address")

	return cmd
}

func (e *env) serve(ctx context.Context, serveMCP bool, httpAddr string) error {
	logger := e.logger

	searchers, release := e.searchSources()
	defer release()
	svc, err := e.service(searchers...)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the current-view context fresh as the vault changes.
	w := vault.NewWatcher(e.vault)
	stopWatch := svc.Watch(w, func(b assistant.Built) {
		logger.Info("context changed", slog.Int("tokens", b.TokensUsed), slog.Int("warnings", len(b.Warnings)))
	})
	defer stopWatch()
	if ix, err := e.openIndex(); err != nil {
		logger.Warn("index unavailable", slog.String("error", err.Error()))
	} else if ix != nil {
		defer ix.Close()
		defer e.syncOnChange(gCtx, w, ix, e.cfg.Cache.Debounce())()
	}
	g.Go(func() error {
		return w.Run(gCtx)
	})

	if serveMCP {
		srv := mcp.New(svc, version, e.cfg.Search.Limit)
		g.Go(func() error {
			logger.Info("Starting MCP server on stdio")
			err := srv.ServeStdio()
			// stdin closed: the client went away.
			cancel()
			return err
		})
	}

	if httpAddr != "" {
		httpServer := &http.Server{
			Addr:              httpAddr,
			Handler:           api.NewRouter(svc, e.cfg.Search.Limit),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", httpAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
