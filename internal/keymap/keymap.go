// internal/keymap/keymap.go
package keymap

import "unicode/utf8"

// identifiers maps the logical key tokens used in keybinding descriptors to
// the key identifiers understood by the Chrome DevTools Protocol
// Input.dispatchKeyEvent method.
var identifiers = map[string]string{
	"cmd":       "Meta",
	"meta":      "Meta",
	"ctrl":      "Control",
	"shift":     "Shift",
	"alt":       "Alt",
	"enter":     "Enter",
	"escape":    "Escape",
	"esc":       "Escape",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
	"tab":       "Tab",
	"space":     " ",
	"backspace": "Backspace",
	"delete":    "Delete",
}

// Translate maps a logical key token to its CDP key identifier. The second
// return value reports whether the token was found in the table.
func Translate(token string) (string, bool) {
	id, ok := identifiers[token]
	return id, ok
}

// IsLiteral reports whether an unmapped token may be dispatched verbatim as a
// printable key. Only single-rune tokens qualify; anything longer that is
// missing from the table is a typo in the descriptor, not a key.
func IsLiteral(token string) bool {
	return utf8.RuneCountInString(token) == 1
}

// IsModifier reports whether a CDP key identifier is a modifier key. Modifier
// state must be carried on every subsequent event of the chord.
func IsModifier(id string) bool {
	switch id {
	case "Control", "Shift", "Alt", "Meta":
		return true
	}
	return false
}
