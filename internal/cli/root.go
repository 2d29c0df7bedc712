package cli

import (
	"github.com/spf13/cobra"

	"tabcap/internal/config"
	"tabcap/internal/diagnostics"
	"tabcap/internal/ports"
	"tabcap/internal/usecase"
	"tabcap/internal/version"
)

type Dependencies struct {
	Config     config.Config
	Tabs       ports.TabDirectory
	Controller *usecase.RecordingController
	Events     *ConsoleEvents
	Checker    *diagnostics.Checker
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tabcapctl",
		Short:         "Record browser tabs from the terminal",
		Long:          "Captures a browser tab (video and audio) over the DevTools protocol,\nmixes in the microphone when asked, and writes the recording to disk.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewTabsCmd(deps))
	rootCmd.AddCommand(NewMeetingsCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
