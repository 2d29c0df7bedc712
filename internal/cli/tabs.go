package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/domain"
)

func NewTabsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List capturable browser tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := deps.Tabs.List(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "ℹ️  No tabs open")
				return nil
			}

			fmt.Fprintf(w, "🗂  Open tabs:\n\n")
			for _, tab := range entries {
				marker := ""
				if domain.RestrictedURL(tab.URL) {
					marker = " 🔒"
				}
				fmt.Fprintf(w, "  [%s] %s%s\n      %s\n", tab.ID, tabTitle(tab), marker, tab.URL)
			}
			return nil
		},
	}
}

func tabTitle(tab domain.Tab) string {
	if tab.Title == "" {
		return "(untitled)"
	}
	return tab.Title
}
