//go:build linux

package hotkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/keybind"
)

// x11Listener registers a passive grab for one key on the root window
// and invokes the callback on every release.
type x11Listener struct {
	key      string
	onToggle func()
}

// New returns a listener for the named key, for example "Scroll_Lock"
// or "F9". An empty key disables the hotkey.
func New(key string, onToggle func()) Listener {
	if key == "" || onToggle == nil {
		return Disabled()
	}
	return &x11Listener{key: key, onToggle: onToggle}
}

func (l *x11Listener) Run(ctx context.Context) error {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return fmt.Errorf("cannot connect to X11: %w", err)
	}
	defer xu.Conn().Close()

	keybind.Initialize(xu)

	codes := keybind.StrToKeycodes(xu, l.key)
	if len(codes) == 0 {
		return fmt.Errorf("no keycode found for %q", l.key)
	}
	root := xu.RootWin()
	for _, code := range codes {
		if err := xproto.GrabKeyChecked(
			xu.Conn(),
			false,
			root,
			xproto.ModMaskAny,
			code,
			xproto.GrabModeAsync,
			xproto.GrabModeAsync,
		).Check(); err != nil {
			return fmt.Errorf("grab %s (keycode %d): %w", l.key, code, err)
		}
	}
	defer func() {
		for _, code := range codes {
			xproto.UngrabKey(xu.Conn(), code, root, xproto.ModMaskAny)
		}
	}()

	// Closing the connection unblocks WaitForEvent.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			xu.Conn().Close()
		case <-watchDone:
		}
	}()

	var pending xgb.Event
	for {
		var ev xgb.Event
		if pending != nil {
			ev = pending
			pending = nil
		} else {
			var xerr xgb.Error
			ev, xerr = xu.Conn().WaitForEvent()
			if xerr != nil {
				continue
			}
			if ev == nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("X11 connection closed")
			}
		}

		release, ok := ev.(xproto.KeyReleaseEvent)
		if !ok {
			continue
		}
		if !containsCode(codes, release.Detail) {
			continue
		}

		// X11 queues KeyRelease+KeyPress as a pair on auto-repeat;
		// discard both so a held key does not toggle repeatedly.
		next, _ := xu.Conn().PollForEvent()
		if press, ok := next.(xproto.KeyPressEvent); ok && press.Detail == release.Detail {
			continue
		}
		if next != nil {
			pending = next
		}

		l.onToggle()
	}
}

func containsCode(codes []xproto.Keycode, code xproto.Keycode) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
