package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var (
		tabID      string
		quality    string
		noTabAudio bool
		withMic    bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a browser tab until interrupted",
		Long:  "Starts a tab recording and keeps it running until Ctrl+C, the tab\ncloses, or the capture fails. Artifacts land in the output directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			target, err := selectTab(ctx, deps.Tabs, tabID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "🎬 Recording %s\n", tabTitle(target))

			opts := domain.RecordingOptions{
				RecordingType:      domain.RecordingTypeTab,
				VideoQuality:       domain.VideoQuality(quality),
				IncludeDeviceAudio: !noTabAudio,
				IncludeMicrophone:  withMic,
				TargetTabID:        target.ID,
			}

			res, err := deps.Controller.Start(ctx, opts)
			if err != nil {
				return err
			}
			if res.Message != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "ℹ️  %s\n", res.Message)
			}

			select {
			case <-ctx.Done():
				// Restore default signal handling so a second Ctrl+C
				// kills the process instead of being swallowed.
				stop()
				if _, err := deps.Controller.Stop(context.Background()); err != nil {
					return err
				}
			case <-deps.Events.Done():
			}

			if deps.Events.Failed() {
				return errors.New("recording did not complete")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tabID, "tab", "t", "", "Tab id to record (defaults to the first capturable tab)")
	cmd.Flags().StringVar(&quality, "quality", "1080p", "Video quality: 720p, 1080p, 4k")
	cmd.Flags().BoolVar(&noTabAudio, "no-tab-audio", false, "Skip tab audio capture")
	cmd.Flags().BoolVar(&withMic, "mic", false, "Mix the microphone into the recording")

	return cmd
}

func selectTab(ctx context.Context, tabs ports.TabDirectory, tabID string) (domain.Tab, error) {
	entries, err := tabs.List(ctx)
	if err != nil {
		return domain.Tab{}, err
	}

	if tabID != "" {
		for _, tab := range entries {
			if tab.ID == tabID {
				return tab, nil
			}
		}
		return domain.Tab{}, fmt.Errorf("tab %q not found", tabID)
	}

	for _, tab := range entries {
		if !domain.RestrictedURL(tab.URL) {
			return tab, nil
		}
	}
	return domain.Tab{}, errors.New("no capturable tab open")
}
