package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qcrao/copilot/internal/search"
)

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var limit int
	var explain bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search pages, daily notes and blocks",
		Long: `Rank pages, daily notes and blocks against a query. Exact and prefix
matches come first across all kinds; the rest are grouped pages, then daily
notes, then blocks.

Uses the index built by 'copilot index' when present, otherwise scans the
vault.

Examples:
  copilot search orion
  copilot search "launch window" --limit 5 --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query must not be empty")
			}
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			searchers, release := e.searchSources()
			defer release()
			svc, err := e.service(searchers...)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.SearchLimit(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w.Error())
			}
			if len(res.Candidates) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for _, c := range res.Candidates {
				line := fmt.Sprintf("%-10s %s", c.Kind, c.DisplayText)
				if c.ParentPageTitle != "" {
					line += "  (" + c.ParentPageTitle + ")"
				}
				if explain {
					m := search.Explain(query, c.DisplayText)
					line += fmt.Sprintf("  [%s@%d]", m.Tier, m.Index)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().BoolVar(&explain, "explain", false, "show the match tier and position of each result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")

	return cmd
}
