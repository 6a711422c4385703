// internal/server/manager.go
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagedriver/internal/config"
)

// endpointPattern matches the server's one-line endpoint announcement on its
// output stream. The single capture group is the endpoint URL verbatim.
var endpointPattern = regexp.MustCompile(`Web UI available at (.+)`)

const teardownGracePeriod = 5 * time.Second

// Manager spawns the editor server process, discovers its endpoint from the
// output stream and tears it down. All state is per-manager; one manager
// supervises at most one process at a time.
type Manager struct {
	cfg    config.ServerConfig
	logger *zap.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	endpoint string

	// done is closed by the wait goroutine once the process has exited.
	done chan struct{}
}

// NewManager creates a manager for the configured server.
func NewManager(cfg config.ServerConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("server_manager"),
	}
}

// scriptPath resolves the platform launch script for the server installation.
func (m *Manager) scriptPath() string {
	if m.cfg.ScriptPath != "" {
		return m.cfg.ScriptPath
	}
	name := "server.sh"
	if runtime.GOOS == "windows" {
		name = "server.cmd"
	}
	return filepath.Join(m.cfg.Path, name)
}

// Launch creates the agent folder, spawns the server in browser-driven web
// mode and blocks until the endpoint is discovered on its output stream.
// The wait is bounded by the configured discovery timeout. The spawned
// process outlives ctx; ctx only bounds the launch itself.
func (m *Manager) Launch(ctx context.Context) error {
	m.mu.Lock()
	if m.cmd != nil {
		m.mu.Unlock()
		return ErrAlreadyLaunched
	}
	m.mu.Unlock()

	if err := os.MkdirAll(m.cfg.AgentFolder, 0o755); err != nil {
		return &DirectoryCreationError{Path: m.cfg.AgentFolder, Err: err}
	}

	script := m.scriptPath()
	args := append([]string{"--browser", "none", "--driver", "web"}, m.cfg.ExtraArgs...)

	cmd := exec.Command(script, args...)
	cmd.Env = append(os.Environ(),
		"AGENT_FOLDER="+m.cfg.AgentFolder,
	)
	if m.cfg.Path != "" {
		cmd.Env = append(cmd.Env, "REMOTE_SERVER_PATH="+m.cfg.Path)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Path: script, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Path: script, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &SpawnError{Path: script, Err: err}
	}

	m.logger.Info("Server process started.",
		zap.String("script", script),
		zap.Int("pid", cmd.Process.Pid))

	endpointCh := make(chan string, 1)
	done := make(chan struct{})

	var pipes errgroup.Group
	pipes.Go(func() error {
		m.scanForEndpoint(stdout, endpointCh)
		return nil
	})
	pipes.Go(func() error {
		m.drainStderr(stderr)
		return nil
	})

	go func() {
		// Pipes must be fully consumed before Wait.
		_ = pipes.Wait()
		if err := cmd.Wait(); err != nil {
			m.logger.Debug("Server process exited.", zap.Error(err))
		}
		close(done)
	}()

	m.mu.Lock()
	m.cmd = cmd
	m.done = done
	m.mu.Unlock()

	timeout := m.cfg.DiscoveryTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case endpoint := <-endpointCh:
		m.mu.Lock()
		m.endpoint = endpoint
		m.mu.Unlock()
		m.logger.Info("Endpoint discovered.", zap.String("endpoint", endpoint))
		return nil
	case <-done:
		m.Teardown()
		return ErrServerExited
	case <-timer.C:
		m.Teardown()
		return &EndpointTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		m.Teardown()
		return fmt.Errorf("server: launch canceled: %w", ctx.Err())
	}
}

// scanForEndpoint reads the output stream line by line and delivers the first
// endpoint announcement. The stream is drained to EOF afterwards so the child
// never blocks on a full pipe.
func (m *Manager) scanForEndpoint(r io.Reader, endpointCh chan<- string) {
	scanner := bufio.NewScanner(r)
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		m.logger.Debug("server stdout", zap.String("line", line))
		if found {
			continue
		}
		if match := endpointPattern.FindStringSubmatch(line); match != nil {
			endpointCh <- match[1]
			found = true
		}
	}
}

func (m *Manager) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.logger.Debug("server stderr", zap.String("line", scanner.Text()))
	}
}

// Endpoint returns the discovered endpoint URL, or the empty string if
// discovery has not completed. The value is set exactly once and is
// immutable afterwards.
func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// Teardown forcibly terminates the server process if one is running and
// clears the handle. It is idempotent, safe before Launch, and never fails:
// kill errors are logged only.
func (m *Manager) Teardown() {
	m.mu.Lock()
	cmd := m.cmd
	done := m.done
	m.cmd = nil
	m.done = nil
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	m.logger.Debug("Tearing down server process.", zap.Int("pid", cmd.Process.Pid))
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		m.logger.Warn("Failed to kill server process.", zap.Error(err))
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(teardownGracePeriod):
			m.logger.Warn("Timed out waiting for server process to exit.")
		}
	}
}
