//go:build !linux

package hotkey

// New returns a disabled listener; global hotkeys need X11.
func New(key string, onToggle func()) Listener {
	return Disabled()
}
