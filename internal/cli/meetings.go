package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/meet"
)

func NewMeetingsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "meetings",
		Short: "List open conference tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			matcher, err := meet.NewMatcher(deps.Config.Meet.Patterns)
			if err != nil {
				return err
			}

			entries, err := deps.Tabs.List(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			found := 0
			for _, tab := range entries {
				meeting, ok := matcher.Match(tab)
				if !ok {
					continue
				}
				found++
				fmt.Fprintf(w, "  📞 %s (%s)\n      tab %s\n", meeting.Title, meeting.RoomCode, meeting.TabID)
			}
			if found == 0 {
				fmt.Fprintln(w, "ℹ️  No meeting tabs open")
			}
			return nil
		},
	}
}
