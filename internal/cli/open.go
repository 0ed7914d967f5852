package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qcrao/copilot/internal/vault"
)

func newOpenCmd(flags *globalFlags) *cobra.Command {
	var sidebar []string
	var visible []string

	cmd := &cobra.Command{
		Use:   "open [page]",
		Short: "Set the current page and sidebar in .copilot/state.yaml",
		Long: `Record what you are looking at so 'copilot context' can build around it.
Editors and plugins can write .copilot/state.yaml directly instead.

With no page, the state is cleared and today's daily note is used.

Examples:
  copilot open "Project Orion" --sidebar Weekly --sidebar Budget
  copilot open`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			state := vault.State{Visible: visible}
			if len(args) == 1 {
				d, err := e.vault.Document(ctx, args[0])
				if err != nil {
					return err
				}
				state.Current = d.Page.Title
			}
			for _, name := range sidebar {
				d, err := e.vault.Document(ctx, name)
				if err != nil {
					return err
				}
				state.Sidebar = append(state.Sidebar, d.Page.Title)
			}

			if err := vault.SaveState(e.vault.Root(), state); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if state.Current == "" {
				fmt.Fprintln(out, "Cleared; using today's daily note.")
				return nil
			}
			fmt.Fprintf(out, "Opened %s", state.Current)
			if len(state.Sidebar) > 0 {
				fmt.Fprintf(out, " with %d sidebar page(s)", len(state.Sidebar))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&sidebar, "sidebar", "s", nil, "page to show in the sidebar (repeatable)")
	cmd.Flags().StringArrayVar(&visible, "visible", nil, "uid of an on-screen block (repeatable)")

	return cmd
}
