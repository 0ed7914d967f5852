package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qcrao/copilot/internal/assistant"
	"github.com/qcrao/copilot/internal/vault"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var printText bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the context whenever the vault changes",
		Long: `Start a long-running watcher that rebuilds the context when pages or
.copilot/state.yaml change.

Bursts of file events are debounced (cache.debounce_ms), and a summary is
printed only when the rebuilt context actually differs.

Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			svc, err := e.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			w := vault.NewWatcher(e.vault)
			stop := svc.Watch(w, func(b assistant.Built) {
				printSummary(out, b)
				if printText {
					fmt.Fprintln(out, b.Text)
				}
			})
			defer stop()

			if ix, err := e.openIndex(); err != nil {
				e.logger.Warn("index unavailable", slog.String("error", err.Error()))
			} else if ix != nil {
				defer ix.Close()
				defer e.syncOnChange(ctx, w, ix, e.cfg.Cache.Debounce())()
			}

			built, err := svc.Build(ctx)
			if err != nil {
				return err
			}
			printSummary(out, built)
			fmt.Fprintf(out, "Watching %s for changes (debounce %s). Press Ctrl-C to stop.\n",
				e.vault.Root(), e.cfg.Cache.Debounce())

			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			fmt.Fprintln(out, "\nStopping watcher.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printText, "print", false, "print the full context on every change")

	return cmd
}

// printSummary writes a one-line description of a build.
func printSummary(out io.Writer, b assistant.Built) {
	var omitted, truncated int
	for _, a := range b.Allocations {
		switch {
		case a.Omitted:
			omitted++
		case a.Truncated:
			truncated++
		}
	}
	fmt.Fprintf(out, "context: %d/%d tokens, %d truncated, %d omitted, %d warning(s)\n",
		b.TokensUsed, b.Budget, truncated, omitted, len(b.Warnings))
}
