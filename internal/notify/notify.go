// Package notify shows desktop notifications for recording lifecycle
// events. Notifications are best effort; a missing notification daemon
// must never interrupt a recording.
package notify

import "github.com/gen2brain/beeep"

const appTitle = "tabcap"

// Desktop sends notifications through the platform notification
// service. The zero value is disabled.
type Desktop struct {
	enabled bool
	send    func(title, message, icon string) error
}

// NewDesktop returns a notifier. When enabled is false every call is a
// no-op.
func NewDesktop(enabled bool) *Desktop {
	return &Desktop{
		enabled: enabled,
		send:    beeep.Notify,
	}
}

// Notify shows a notification, ignoring delivery errors.
func (d *Desktop) Notify(title string, body string) {
	if d == nil || !d.enabled || d.send == nil {
		return
	}
	if title == "" {
		title = appTitle
	}
	_ = d.send(title, body, "")
}
