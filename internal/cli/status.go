package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcrao/copilot/internal/vault"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the vault, open page, budget and index state",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			docs, err := e.vault.Documents(ctx)
			if err != nil {
				return err
			}
			var daily int
			for _, d := range docs {
				if d.Daily {
					daily++
				}
			}
			state, err := vault.LoadState(e.vault.Root())
			if err != nil {
				return err
			}
			current := state.Current
			if current == "" {
				current = "(today's daily note)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nVault:    %s\n", e.vault.Root())
			fmt.Fprintf(out, "Pages:    %d (%d daily notes)\n", len(docs), daily)
			fmt.Fprintf(out, "Open:     %s\n", current)
			if len(state.Sidebar) > 0 {
				fmt.Fprintf(out, "Sidebar:  %d page(s)\n", len(state.Sidebar))
			}
			fmt.Fprintf(out, "Model:    %s (%d token window)\n", e.cfg.Model, e.cfg.ContextWindow())
			fmt.Fprintf(out, "Budget:   %d tokens\n", e.cfg.Budget())

			ix, err := e.openIndex()
			switch {
			case err != nil:
				fmt.Fprintf(out, "Index:    unavailable (%v)\n", err)
			case ix == nil:
				fmt.Fprintln(out, "Index:    none (run `copilot index`)")
			default:
				defer ix.Close()
				pages, blocks, err := ix.Counts()
				if err != nil {
					return err
				}
				var dbSize int64
				if fi, err := os.Stat(e.dbPath()); err == nil {
					dbSize = fi.Size()
				}
				fmt.Fprintf(out, "Index:    %d pages, %d blocks (%s)\n", pages, blocks, formatBytes(dbSize))
				if state.Current != "" {
					linked, err := ix.Backlinks(ctx, state.Current)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Linked:   %d page(s) link to %s\n", len(linked), state.Current)
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
