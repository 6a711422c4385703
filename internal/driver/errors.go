// internal/driver/errors.go
package driver

import "errors"

// ErrUnknownKeyToken is returned when a keybinding descriptor contains a
// multi-character token with no entry in the key table. Single characters
// pass through as literal printable keys; anything else is rejected rather
// than silently dispatched.
var ErrUnknownKeyToken = errors.New("driver: unknown key token")

// ErrUnknownWindow is returned when an action names a window id other than
// the session's single window.
var ErrUnknownWindow = errors.New("driver: unknown window id")
