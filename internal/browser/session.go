// internal/browser/session.go
package browser

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/config"
	"github.com/xkilldash9x/pagedriver/internal/keymap"
)

// The editor UI is laid out for exactly this viewport.
const (
	ViewportWidth  = 1200
	ViewportHeight = 800
)

// driverCallFn invokes a method on the page-global automation object with a
// structured argument list. Arguments travel as CDP call arguments, never as
// interpolated source text, so selectors and texts need no escaping.
const driverCallFn = `function(method, args) { return window.driver[method].apply(window.driver, args); }`

// Session is one connected browser page, bound to a discovered endpoint.
// It owns the chromedp contexts and translates driver verbs into CDP input
// events and structured in-page calls.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	// allocCancel releases the exec allocator (the browser process).
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         config.BrowserConfig

	onClose func()

	mu       sync.Mutex
	isClosed bool
	// modifiers is the bitmask of currently held modifier keys. Updated on
	// every modifier down/up so non-modifier events within a chord carry the
	// chord's modifier state, as a physical keyboard would.
	modifiers input.Modifier
}

// NavigationURL builds the full URL the session opens: the discovered
// endpoint plus the folder query parameter addressing the workspace through
// the remote authority.
func NavigationURL(endpoint, scheme string, port int, workspace string) string {
	path := filepath.ToSlash(workspace)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return endpoint + "&folder=" + scheme + "://localhost:" + strconv.Itoa(port) + path
}

// Connect launches the browser, sets the fixed viewport and navigates to the
// endpoint with the workspace folder. The returned session must be released
// with Close; closing invokes onClose, which the caller uses to tear down
// the server process.
func Connect(
	ctx context.Context,
	cfg config.BrowserConfig,
	endpoint string,
	workspace string,
	logger *zap.Logger,
	onClose func(),
) (*Session, error) {
	if cfg.Engine != config.EngineChromium {
		return nil, &UnsupportedEngineError{Engine: cfg.Engine}
	}

	sessionID := uuid.New().String()
	sessionLogger := logger.Named("browser").With(zap.String("session_id", sessionID))

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	// The browser must outlive the connect call; ctx only bounds setup.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      sessionLogger,
		cfg:         cfg,
		onClose:     onClose,
	}

	url := NavigationURL(endpoint, cfg.RemoteScheme, cfg.RemotePort, workspace)
	sessionLogger.Info("Connecting browser session.",
		zap.String("url", url),
		zap.Bool("headless", cfg.Headless))

	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	defer navCancel()

	if err := s.runActions(navCtx,
		chromedp.EmulateViewport(ViewportWidth, ViewportHeight),
		chromedp.Navigate(url),
	); err != nil {
		s.release()
		return nil, &NavigationError{URL: url, Err: err}
	}

	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// runActions executes chromedp actions against the session target, honoring
// both the session lifetime and the per-call context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// CallDriver invokes a method on the page automation object, passing args as
// a structured, JSON-marshaled list and unmarshaling the result into res
// (res may be nil for void methods). Promises returned by the page are
// awaited.
func (s *Session) CallDriver(ctx context.Context, method string, res interface{}, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	action := chromedp.CallFunctionOn(driverCallFn, res,
		func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithAwaitPromise(true)
		},
		method, args,
	)
	if err := s.runActions(ctx, action); err != nil {
		return &EvaluationError{Method: method, Err: err}
	}
	return nil
}

// KeyDown dispatches a key-down event for the given CDP key identifier.
// Printable single-rune keys also carry text so the page receives character
// input.
func (s *Session) KeyDown(ctx context.Context, key string) error {
	s.mu.Lock()
	if bit := modifierBit(key); bit != input.ModifierNone {
		s.modifiers |= bit
	}
	mods := s.modifiers
	s.mu.Unlock()

	ev := input.DispatchKeyEvent(input.KeyDown).
		WithModifiers(mods).
		WithKey(key)
	if isPrintable(key) {
		ev = ev.WithText(key)
	}

	return s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return ev.Do(c)
	}))
}

// KeyUp dispatches a key-up event for the given CDP key identifier.
func (s *Session) KeyUp(ctx context.Context, key string) error {
	s.mu.Lock()
	if bit := modifierBit(key); bit != input.ModifierNone {
		s.modifiers &^= bit
	}
	mods := s.modifiers
	s.mu.Unlock()

	ev := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(mods).
		WithKey(key)

	return s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return ev.Do(c)
	}))
}

// ClickAt issues a left-button press and release at the given page
// coordinate.
func (s *Session) ClickAt(ctx context.Context, x, y float64, clickCount int64) error {
	press := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).
		WithClickCount(clickCount)
	release := input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).
		WithClickCount(clickCount)

	return s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		if err := press.Do(c); err != nil {
			return err
		}
		return release.Do(c)
	}))
}

// Close terminates the browser session. It is idempotent; the first call
// releases the browser and runs the onClose callback.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.release()

	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// release cancels the chromedp contexts, killing the browser process.
func (s *Session) release() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// modifierBit returns the CDP modifier bit for a modifier key identifier,
// or ModifierNone for every other key.
func modifierBit(key string) input.Modifier {
	switch key {
	case "Control":
		return input.ModifierCtrl
	case "Shift":
		return input.ModifierShift
	case "Alt":
		return input.ModifierAlt
	case "Meta":
		return input.ModifierMeta
	}
	return input.ModifierNone
}

// isPrintable reports whether the key identifier is a literal printable key
// rather than a named key like Enter or ArrowUp.
func isPrintable(key string) bool {
	return !keymap.IsModifier(key) && keymap.IsLiteral(key)
}

// combineContext derives a context canceled when either parent is done,
// while keeping the chromedp target values of the session context.
func combineContext(sessionCtx, callCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(sessionCtx)
	stop := context.AfterFunc(callCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
