// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagedriver/internal/config"
)

func TestNavigationURL(t *testing.T) {
	cases := []struct {
		name      string
		endpoint  string
		scheme    string
		port      int
		workspace string
		want      string
	}{
		{
			name:      "token endpoint",
			endpoint:  "http://localhost:9888/?tkn=abc",
			scheme:    "vscode-remote",
			port:      9888,
			workspace: "/tmp/workspace",
			want:      "http://localhost:9888/?tkn=abc&folder=vscode-remote://localhost:9888/tmp/workspace",
		},
		{
			name:      "relative workspace gets a leading slash",
			endpoint:  "http://h/?a=1",
			scheme:    "vscode-remote",
			port:      9888,
			workspace: "work",
			want:      "http://h/?a=1&folder=vscode-remote://localhost:9888/work",
		},
		{
			name:      "custom scheme and port",
			endpoint:  "http://h/?a=1",
			scheme:    "remote",
			port:      8000,
			workspace: "/w",
			want:      "http://h/?a=1&folder=remote://localhost:8000/w",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NavigationURL(tc.endpoint, tc.scheme, tc.port, tc.workspace))
		})
	}
}

func TestConnectRejectsUnsupportedEngine(t *testing.T) {
	cfg := config.Default().Browser
	cfg.Engine = "firefox"

	_, err := Connect(context.Background(), cfg, "http://h/?a=1", "/w", zaptest.NewLogger(t), nil)
	require.Error(t, err)

	var engineErr *UnsupportedEngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "firefox", engineErr.Engine)
}

func TestModifierBit(t *testing.T) {
	assert.Equal(t, input.ModifierCtrl, modifierBit("Control"))
	assert.Equal(t, input.ModifierShift, modifierBit("Shift"))
	assert.Equal(t, input.ModifierAlt, modifierBit("Alt"))
	assert.Equal(t, input.ModifierMeta, modifierBit("Meta"))
	assert.Equal(t, input.ModifierNone, modifierBit("Enter"))
	assert.Equal(t, input.ModifierNone, modifierBit("a"))
}

func TestIsPrintable(t *testing.T) {
	assert.True(t, isPrintable("a"))
	assert.True(t, isPrintable(" "))
	assert.False(t, isPrintable("Enter"))
	assert.False(t, isPrintable("Control"))
	assert.False(t, isPrintable("ArrowUp"))
}

func TestCloseIsIdempotent(t *testing.T) {
	closed := 0
	cancels := 0
	s := &Session{
		id:          "test",
		cancel:      func() { cancels++ },
		allocCancel: func() { cancels++ },
		logger:      zaptest.NewLogger(t),
		onClose:     func() { closed++ },
	}

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, 1, closed, "onClose must run exactly once")
	assert.Equal(t, 2, cancels, "both contexts released once")
}

func TestCombineContext(t *testing.T) {
	session, cancelSession := context.WithCancel(context.Background())
	defer cancelSession()
	call, cancelCall := context.WithCancel(context.Background())
	defer cancelCall()

	ctx, cancel := combineContext(session, call)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("combined context done too early")
	default:
	}

	cancelCall()
	<-ctx.Done()
	assert.Error(t, ctx.Err())
}
