package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qcrao/copilot/internal/assistant"
	ctxpkg "github.com/qcrao/copilot/internal/context"
)

func newContextCmd(flags *globalFlags) *cobra.Command {
	var page string
	var maxTokens int
	var asJSON bool
	var exact bool

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print the token-budgeted context for what you are looking at",
		Long: `Assemble the current page, visible blocks, sidebar notes and linked
references into one Markdown context that fits the token budget.

The current page and sidebar come from .copilot/state.yaml (see 'copilot
open'); without one, today's daily note is used.

Examples:
  copilot context
  copilot context --page "Project Orion" --max-tokens 2000
  copilot context --json
  copilot context -v --exact`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxTokens < 0 {
				return fmt.Errorf("--max-tokens must not be negative")
			}
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			svc, err := e.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			built, err := svc.BuildWith(cmd.Context(), assistant.BuildOptions{Page: page, MaxTokens: maxTokens})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(built)
			}
			fmt.Fprint(out, built.Text)

			errOut := cmd.ErrOrStderr()
			for _, w := range built.Warnings {
				fmt.Fprintf(errOut, "Warning: %s\n", w.Error())
			}
			if flags.verbose {
				printAllocations(errOut, built)
			}
			if exact {
				printDrift(errOut, built.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&page, "page", "p", "", "build around this page instead of the open one")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&exact, "exact", false, "also count tokens with tiktoken and report the estimate's drift")

	return cmd
}

// printAllocations writes one row per section in emission order.
func printAllocations(w io.Writer, b assistant.Built) {
	fmt.Fprintf(w, "\n%-18s %4s %7s %9s %5s  %s\n", "SECTION", "PRI", "NEEDED", "ALLOCATED", "USED", "STATUS")
	for _, a := range b.Allocations {
		status := "ok"
		switch {
		case a.Omitted:
			status = "omitted"
		case a.Truncated:
			status = "truncated"
		}
		fmt.Fprintf(w, "%-18s %4d %7d %9d %5d  %s\n", a.Kind, a.Priority, a.Needed, a.Allocated, a.Used, status)
	}
	fmt.Fprintf(w, "Total: %d/%d tokens (estimated)\n", b.TokensUsed, b.Budget)
}

// printDrift compares the chars/4 estimate with a real tokenizer count.
func printDrift(w io.Writer, text string) {
	tok, err := ctxpkg.NewTokenizer()
	if err != nil {
		fmt.Fprintf(w, "Tokenizer unavailable: %v\n", err)
		return
	}
	estimate, exact, drift := tok.Drift(text)
	fmt.Fprintf(w, "Tokenizer: %d exact vs %d estimated (%+.1f%%)\n", exact, estimate, drift*100)
}
