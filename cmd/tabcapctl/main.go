package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"tabcap/internal/bootstrap"
	"tabcap/internal/cli"
	"tabcap/internal/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	events := cli.NewConsoleEvents(os.Stdout)
	services, err := bootstrap.Build(bootstrap.Sinks{
		Recording: events,
		Meetings:  quietMeetings{},
		Auth:      quietAuth{},
	})
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	deps := &cli.Dependencies{
		Config:     services.Config,
		Tabs:       services.Tabs,
		Controller: services.Controller,
		Events:     events,
		Checker:    services.Checker,
	}

	return cli.NewRootCmd(deps).Execute()
}

// The CLI polls on demand instead of watching, so meeting and auth
// broadcasts have nowhere to go.
type quietMeetings struct{}

func (quietMeetings) MeetingDetected(_ domain.Meeting) {}
func (quietMeetings) MeetingEnded(_ domain.Meeting)    {}

type quietAuth struct{}

func (quietAuth) AuthStateChanged(_ domain.AuthState) {}
