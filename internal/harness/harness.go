// internal/harness/harness.go
package harness

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/browser"
	"github.com/xkilldash9x/pagedriver/internal/config"
	"github.com/xkilldash9x/pagedriver/internal/driver"
	"github.com/xkilldash9x/pagedriver/internal/server"
)

// connect is the browser attach function; a seam for tests that cannot
// launch a real browser.
var connect = func(
	ctx context.Context,
	cfg config.BrowserConfig,
	endpoint string,
	workspace string,
	logger *zap.Logger,
	onClose func(),
) (driver.Session, error) {
	return browser.Connect(ctx, cfg, endpoint, workspace, logger, onClose)
}

// Harness owns one server process and one browser session and hands the
// test code a bound driver. Close releases both, on every path, exactly
// once; it replaces the reference design's global signal handlers with a
// caller-owned resource.
type Harness struct {
	logger  *zap.Logger
	server  *server.Manager
	session driver.Session
	driver  *driver.Driver

	mu     sync.Mutex
	closed bool
}

// Open launches the server, waits for endpoint discovery, connects the
// browser and returns a ready harness. On any failure the already acquired
// resources are released before returning.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Harness, error) {
	srv := server.NewManager(cfg.Server, logger)
	if err := srv.Launch(ctx); err != nil {
		return nil, err
	}

	// Closing the session cascades into server teardown.
	session, err := connect(ctx, cfg.Browser, srv.Endpoint(), cfg.Server.Workspace, logger, srv.Teardown)
	if err != nil {
		srv.Teardown()
		return nil, err
	}

	return &Harness{
		logger:  logger.Named("harness"),
		server:  srv,
		session: session,
		driver:  driver.New(session, logger),
	}, nil
}

// Driver returns the UI action driver bound to this harness's session.
func (h *Harness) Driver() *driver.Driver {
	return h.driver
}

// Endpoint returns the discovered endpoint URL.
func (h *Harness) Endpoint() string {
	return h.server.Endpoint()
}

// Close releases the browser session and, through its onClose callback, the
// server process. Safe to call repeatedly.
func (h *Harness) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.logger.Debug("Closing harness.")
	if err := h.session.Close(ctx); err != nil {
		// The session is gone either way; make sure the server follows.
		h.server.Teardown()
		return err
	}
	return nil
}
