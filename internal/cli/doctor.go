package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/domain"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check recording prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := deps.Checker.Run(cmd.Context(), deps.Config)

			w := cmd.OutOrStdout()
			for _, item := range report.Items {
				switch item.Status {
				case domain.DiagnosticStatusPass:
					fmt.Fprintf(w, "  ✅ %s: %s\n", item.Name, item.Message)
				case domain.DiagnosticStatusWarn:
					fmt.Fprintf(w, "  ⚠️  %s: %s\n", item.Name, item.Message)
				default:
					fmt.Fprintf(w, "  ❌ %s: %s\n", item.Name, item.Message)
				}
				if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
					fmt.Fprintf(w, "     %s\n", item.Hint)
				}
			}

			if report.HasFailures {
				fmt.Fprintln(w, "\n⚠️  Some checks failed.")
			} else {
				fmt.Fprintln(w, "\n✅ Ready to record.")
			}
			return nil
		},
	}
}
