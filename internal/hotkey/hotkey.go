// Package hotkey fires a callback on a global record-toggle key.
// Support is X11 only; everywhere else the listener is a no-op.
package hotkey

import "context"

// Listener watches for the toggle key until the context is canceled.
type Listener interface {
	Run(ctx context.Context) error
}

type noop struct{}

func (noop) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Disabled returns a listener that only waits for cancellation.
func Disabled() Listener {
	return noop{}
}
