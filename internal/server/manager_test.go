// internal/server/manager_test.go
package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagedriver/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.sh")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestManager(t *testing.T, cfg config.ServerConfig) *Manager {
	t.Helper()
	if cfg.AgentFolder == "" {
		cfg.AgentFolder = filepath.Join(t.TempDir(), "agent")
	}
	if cfg.DiscoveryTimeout == 0 {
		cfg.DiscoveryTimeout = 10 * time.Second
	}
	m := NewManager(cfg, zaptest.NewLogger(t))
	t.Cleanup(m.Teardown)
	return m
}

func TestLaunchDiscoversEndpoint(t *testing.T) {
	script := writeScript(t, `echo "Web UI available at http://localhost:9888/?tkn=abc"
sleep 30`)
	m := newTestManager(t, config.ServerConfig{ScriptPath: script})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, m.Launch(ctx))
	assert.Equal(t, "http://localhost:9888/?tkn=abc", m.Endpoint())
}

func TestLaunchPassesEnvironmentOverlay(t *testing.T) {
	// The script echoes the agent folder back inside the announcement, which
	// proves the overlay reached the child process.
	script := writeScript(t, `echo "Web UI available at http://localhost:9888/?folder=$AGENT_FOLDER"
sleep 30`)
	agent := filepath.Join(t.TempDir(), "agent-data")
	m := newTestManager(t, config.ServerConfig{ScriptPath: script, AgentFolder: agent})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, m.Launch(ctx))
	assert.Equal(t, "http://localhost:9888/?folder="+agent, m.Endpoint())

	// The agent folder must have been created before the spawn.
	info, err := os.Stat(agent)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLaunchIgnoresLaterAnnouncements(t *testing.T) {
	script := writeScript(t, `echo "Web UI available at http://first.example"
echo "Web UI available at http://second.example"
sleep 30`)
	m := newTestManager(t, config.ServerConfig{ScriptPath: script})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, m.Launch(ctx))
	assert.Equal(t, "http://first.example", m.Endpoint())
}

func TestLaunchTimesOutWithoutAnnouncement(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	m := newTestManager(t, config.ServerConfig{
		ScriptPath:       script,
		DiscoveryTimeout: 300 * time.Millisecond,
	})

	err := m.Launch(context.Background())
	require.Error(t, err)

	var timeoutErr *EndpointTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 300*time.Millisecond, timeoutErr.Timeout)
	assert.Empty(t, m.Endpoint())
}

func TestLaunchReportsEarlyExit(t *testing.T) {
	script := writeScript(t, `echo "no endpoint here"`)
	m := newTestManager(t, config.ServerConfig{ScriptPath: script})

	err := m.Launch(context.Background())
	require.ErrorIs(t, err, ErrServerExited)
}

func TestLaunchFailsOnMissingExecutable(t *testing.T) {
	m := newTestManager(t, config.ServerConfig{
		ScriptPath: filepath.Join(t.TempDir(), "does-not-exist.sh"),
	})

	err := m.Launch(context.Background())
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestLaunchFailsOnAgentFolderCollision(t *testing.T) {
	// A regular file where the agent folder should go makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	script := writeScript(t, `sleep 30`)
	m := newTestManager(t, config.ServerConfig{
		ScriptPath:  script,
		AgentFolder: filepath.Join(blocker, "agent"),
	})

	err := m.Launch(context.Background())
	require.Error(t, err)

	var dirErr *DirectoryCreationError
	require.ErrorAs(t, err, &dirErr)
}

func TestLaunchTwiceIsRejected(t *testing.T) {
	script := writeScript(t, `echo "Web UI available at http://localhost:9888/"
sleep 30`)
	m := newTestManager(t, config.ServerConfig{ScriptPath: script})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, m.Launch(ctx))
	require.ErrorIs(t, m.Launch(ctx), ErrAlreadyLaunched)
}

func TestTeardownIsIdempotent(t *testing.T) {
	script := writeScript(t, `echo "Web UI available at http://localhost:9888/"
sleep 30`)
	m := newTestManager(t, config.ServerConfig{ScriptPath: script})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, m.Launch(ctx))

	m.Teardown()
	m.Teardown()

	m.mu.Lock()
	assert.Nil(t, m.cmd, "process handle should be cleared")
	m.mu.Unlock()
}

func TestTeardownBeforeLaunchIsSafe(t *testing.T) {
	m := newTestManager(t, config.ServerConfig{ScriptPath: "/bin/true"})
	m.Teardown()
	m.Teardown()
}

func TestEndpointPattern(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"Web UI available at http://localhost:9888/?tkn=abc", "http://localhost:9888/?tkn=abc"},
		{"prefix Web UI available at http://h/x", "http://h/x"},
		{"Web UI available at", ""},
		{"something else entirely", ""},
	}
	for _, tc := range cases {
		match := endpointPattern.FindStringSubmatch(tc.line)
		if tc.want == "" {
			assert.Nil(t, match, tc.line)
			continue
		}
		require.NotNil(t, match, tc.line)
		assert.Equal(t, tc.want, match[1])
	}
}
