package cli

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/qcrao/copilot/internal/index"
)

func newIndexCmd(flags *globalFlags) *cobra.Command {
	var rebuild bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the search index in .copilot/index.db",
		Long: `Parse every page in the vault and store its blocks in a SQLite index.
Only pages whose content changed are rewritten; pages deleted from the vault
are removed from the index.

Examples:
  copilot index
  copilot index --rebuild`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if rebuild {
				for _, suffix := range []string{"", "-wal", "-shm"} {
					if err := os.Remove(e.dbPath() + suffix); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("remove index: %w", err)
					}
				}
			}

			docs, err := e.vault.Documents(ctx)
			if err != nil {
				return err
			}

			ix, err := index.Open(e.dbPath(), e.logger)
			if err != nil {
				return err
			}
			defer ix.Close()

			var progress func(done, total int)
			if !quiet && term.IsTerminal(int(os.Stderr.Fd())) {
				bar := progressbar.NewOptions(len(docs),
					progressbar.OptionSetDescription("  Indexing pages"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				defer func() { _ = bar.Finish() }()
				progress = func(done, _ int) { _ = bar.Set(done) }
			}

			stats, err := ix.Sync(ctx, docs, progress)
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}
			pages, blocks, err := ix.Counts()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d pages (%d added, %d updated, %d removed, %d unchanged), %d blocks.\n",
				pages, stats.Added, stats.Updated, stats.Removed, stats.Unchanged, blocks)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "discard the existing index first")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress and summary output")

	return cmd
}
