// internal/driver/keychord.go
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/keymap"
)

// KeySink receives translated key press and release events. The browser
// session implements it; tests substitute a recorder.
type KeySink interface {
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
}

// Sleeper pauses between input events; injectable so ordering tests don't
// spend wall-clock time.
type Sleeper func(ctx context.Context, d time.Duration) error

const (
	// interChordDelay lets the UI settle between consecutive chords.
	interChordDelay = 100 * time.Millisecond
	// settleDelay follows the final chord for the same reason.
	settleDelay = 100 * time.Millisecond
)

// ChordDispatcher turns keybinding descriptors like "ctrl+shift+p enter"
// into ordered key press and release events. Keys within a chord go down
// left to right and come back up in reverse, so modifiers release after the
// key they modified.
type ChordDispatcher struct {
	sink   KeySink
	sleep  Sleeper
	logger *zap.Logger
}

// NewChordDispatcher creates a dispatcher over the given sink.
func NewChordDispatcher(sink KeySink, logger *zap.Logger) *ChordDispatcher {
	return &ChordDispatcher{
		sink:   sink,
		sleep:  sleepCtx,
		logger: logger.Named("keychord"),
	}
}

// sleepCtx is the default context-aware sleeper.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseDescriptor splits a keybinding descriptor into chords of translated
// CDP key identifiers. The whole descriptor is validated before anything is
// dispatched.
func parseDescriptor(descriptor string) ([][]string, error) {
	var chords [][]string
	for _, chordDesc := range strings.Split(descriptor, " ") {
		if chordDesc == "" {
			continue
		}
		tokens := strings.Split(chordDesc, "+")
		keys := make([]string, 0, len(tokens))
		for _, token := range tokens {
			if id, ok := keymap.Translate(token); ok {
				keys = append(keys, id)
				continue
			}
			if !keymap.IsLiteral(token) {
				return nil, fmt.Errorf("%w: %q in chord %q", ErrUnknownKeyToken, token, chordDesc)
			}
			keys = append(keys, token)
		}
		chords = append(chords, keys)
	}
	return chords, nil
}

// Dispatch executes the keybinding descriptor against the sink. An empty
// descriptor is a no-op. A pause is inserted before every chord after the
// first, and a settle pause follows the final chord.
func (d *ChordDispatcher) Dispatch(ctx context.Context, descriptor string) error {
	chords, err := parseDescriptor(descriptor)
	if err != nil {
		return err
	}
	if len(chords) == 0 {
		return nil
	}

	d.logger.Debug("Dispatching keybinding.",
		zap.String("descriptor", descriptor),
		zap.Int("chords", len(chords)))

	for i, keys := range chords {
		if i > 0 {
			if err := d.sleep(ctx, interChordDelay); err != nil {
				return err
			}
		}
		if err := d.dispatchChord(ctx, keys); err != nil {
			return err
		}
	}

	return d.sleep(ctx, settleDelay)
}

// dispatchChord presses every key left to right, then releases them in
// reverse stack order.
func (d *ChordDispatcher) dispatchChord(ctx context.Context, keys []string) error {
	pressed := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := d.sink.KeyDown(ctx, key); err != nil {
			return fmt.Errorf("driver: key down %q: %w", key, err)
		}
		pressed = append(pressed, key)
	}
	for i := len(pressed) - 1; i >= 0; i-- {
		if err := d.sink.KeyUp(ctx, pressed[i]); err != nil {
			return fmt.Errorf("driver: key up %q: %w", pressed[i], err)
		}
	}
	return nil
}
