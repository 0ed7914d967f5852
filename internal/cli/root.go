// Package cli defines the Cobra command tree for the copilot CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	vault   string
	verbose bool
}

// newRootCmd builds the base command and its subcommands.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "copilot",
		Short: "Token-budgeted context and search for a Markdown outline vault",
		Long: `Copilot assembles what you are looking at in your notes (the current page,
visible blocks, sidebar notes and linked references) into a context that
fits a model's token budget, and ranks pages and blocks for quick search.

The vault is the nearest directory containing .copilot/, or the working
directory. Run 'copilot index' once to speed up search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.vault, "vault", "", "vault directory (default: nearest .copilot/ or cwd)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging and diagnostics")

	cmd.AddCommand(
		newContextCmd(flags),
		newSearchCmd(flags),
		newOpenCmd(flags),
		newWatchCmd(flags),
		newIndexCmd(flags),
		newServeCmd(flags),
		newStatusCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "copilot %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
