// internal/driver/driver.go
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// WindowID identifies the single window of a session. One session owns
// exactly one page, so every action addresses this id.
const WindowID = 1

const doubleClickGap = 60 * time.Millisecond

// Session is the browser surface the driver needs: structured page calls,
// raw pointer/key input, and disposal. *browser.Session implements it.
type Session interface {
	KeySink
	CallDriver(ctx context.Context, method string, res interface{}, args ...interface{}) error
	ClickAt(ctx context.Context, x, y float64, clickCount int64) error
	Close(ctx context.Context) error
}

// ElementInfo describes one element returned by Elements.
type ElementInfo struct {
	TagName     string            `json:"tagName"`
	ClassName   string            `json:"className"`
	TextContent string            `json:"textContent"`
	Attributes  map[string]string `json:"attributes"`
	Children    []ElementInfo     `json:"children"`
}

// point mirrors the {x,y} object returned by the page's coordinate lookup.
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Driver implements the full UI action contract consumed by the test
// harness, translating each verb into synthetic input events or structured
// calls against the page automation object.
type Driver struct {
	session Session
	chords  *ChordDispatcher
	sleep   Sleeper
	logger  *zap.Logger
}

// New binds a driver to a connected session.
func New(session Session, logger *zap.Logger) *Driver {
	return &Driver{
		session: session,
		chords:  NewChordDispatcher(session, logger),
		sleep:   sleepCtx,
		logger:  logger.Named("driver"),
	}
}

func checkWindow(id int) error {
	if id != WindowID {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, id)
	}
	return nil
}

// WindowIDs returns the singleton window id.
func (d *Driver) WindowIDs(ctx context.Context) ([]int, error) {
	return []int{WindowID}, nil
}

// CapturePage is a stub kept for interface compatibility with the harness;
// real screenshot capture is out of scope.
func (d *Driver) CapturePage(ctx context.Context, windowID int) (string, error) {
	if err := checkWindow(windowID); err != nil {
		return "", err
	}
	return "", nil
}

// ReloadWindow is a stub kept for interface compatibility with the harness.
func (d *Driver) ReloadWindow(ctx context.Context, windowID int) error {
	if err := checkWindow(windowID); err != nil {
		return err
	}
	d.logger.Debug("ReloadWindow is not implemented; ignoring.")
	return nil
}

// ExitApplication closes the browser session.
func (d *Driver) ExitApplication(ctx context.Context) error {
	return d.session.Close(ctx)
}

// DispatchKeybinding executes a keybinding descriptor such as
// "ctrl+shift+enter" or "escape enter".
func (d *Driver) DispatchKeybinding(ctx context.Context, windowID int, descriptor string) error {
	if err := checkWindow(windowID); err != nil {
		return err
	}
	return d.chords.Dispatch(ctx, descriptor)
}

// ElementXY resolves the on-screen coordinate for a selector. The offsets
// are handed to the page lookup, which applies them to the element's base
// position exactly once.
func (d *Driver) ElementXY(ctx context.Context, windowID int, selector string, xOffset, yOffset int) (float64, float64, error) {
	if err := checkWindow(windowID); err != nil {
		return 0, 0, err
	}
	var p point
	if err := d.session.CallDriver(ctx, "getElementXY", &p, selector, xOffset, yOffset); err != nil {
		return 0, 0, err
	}
	return p.X, p.Y, nil
}

// Click resolves the selector's coordinate, already offset by xOffset and
// yOffset, and clicks the resulting point verbatim. Offsets are applied
// once, inside the lookup, never a second time here.
func (d *Driver) Click(ctx context.Context, windowID int, selector string, xOffset, yOffset int) error {
	x, y, err := d.ElementXY(ctx, windowID, selector, xOffset, yOffset)
	if err != nil {
		return err
	}
	d.logger.Debug("Clicking element.",
		zap.String("selector", selector),
		zap.Float64("x", x),
		zap.Float64("y", y))
	return d.session.ClickAt(ctx, x, y, 1)
}

// DoubleClick issues two clicks with a short gap, then lets the UI settle.
func (d *Driver) DoubleClick(ctx context.Context, windowID int, selector string) error {
	if err := d.Click(ctx, windowID, selector, 0, 0); err != nil {
		return err
	}
	if err := d.sleep(ctx, doubleClickGap); err != nil {
		return err
	}
	if err := d.Click(ctx, windowID, selector, 0, 0); err != nil {
		return err
	}
	return d.sleep(ctx, settleDelay)
}

// SetValue sets the value of the element matching the selector.
func (d *Driver) SetValue(ctx context.Context, windowID int, selector, text string) error {
	if err := checkWindow(windowID); err != nil {
		return err
	}
	return d.session.CallDriver(ctx, "setValue", nil, selector, text)
}

// Title returns the window title.
func (d *Driver) Title(ctx context.Context, windowID int) (string, error) {
	if err := checkWindow(windowID); err != nil {
		return "", err
	}
	var title string
	if err := d.session.CallDriver(ctx, "getTitle", &title); err != nil {
		return "", err
	}
	return title, nil
}

// IsActiveElement reports whether the selector matches the focused element.
func (d *Driver) IsActiveElement(ctx context.Context, windowID int, selector string) (bool, error) {
	if err := checkWindow(windowID); err != nil {
		return false, err
	}
	var active bool
	if err := d.session.CallDriver(ctx, "isActiveElement", &active, selector); err != nil {
		return false, err
	}
	return active, nil
}

// Elements returns the elements matching the selector, optionally recursing
// into their children.
func (d *Driver) Elements(ctx context.Context, windowID int, selector string, recursive bool) ([]ElementInfo, error) {
	if err := checkWindow(windowID); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := d.session.CallDriver(ctx, "getElements", &raw, selector, recursive); err != nil {
		return nil, err
	}
	var elements []ElementInfo
	if err := jsoniter.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("driver: failed to decode getElements result: %w", err)
	}
	return elements, nil
}

// TypeInEditor types text into the editor identified by the selector.
func (d *Driver) TypeInEditor(ctx context.Context, windowID int, selector, text string) error {
	if err := checkWindow(windowID); err != nil {
		return err
	}
	return d.session.CallDriver(ctx, "typeInEditor", nil, selector, text)
}

// TerminalBuffer reads the visible lines of the terminal matching the
// selector.
func (d *Driver) TerminalBuffer(ctx context.Context, windowID int, selector string) ([]string, error) {
	if err := checkWindow(windowID); err != nil {
		return nil, err
	}
	var lines []string
	if err := d.session.CallDriver(ctx, "getTerminalBuffer", &lines, selector); err != nil {
		return nil, err
	}
	return lines, nil
}

// WriteInTerminal writes text into the terminal matching the selector.
func (d *Driver) WriteInTerminal(ctx context.Context, windowID int, selector, text string) error {
	if err := checkWindow(windowID); err != nil {
		return err
	}
	return d.session.CallDriver(ctx, "writeInTerminal", nil, selector, text)
}
