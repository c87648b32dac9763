package connection

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct{ msgs []string }

func (n *recordingNotifier) Warn(m string) { n.msgs = append(n.msgs, m) }

func TestConnection_Lifecycle(t *testing.T) {
	c := New("/ws", "127.0.0.1", 3000)
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 3000, c.HTTPPort())
	assert.Equal(t, 3001, c.WSPort())

	assert.False(t, c.MarkConnected(Binding{HTTPPort: 1}), "must be connecting first")
	require.True(t, c.BeginConnecting())
	assert.False(t, c.BeginConnecting())
	assert.Equal(t, Connecting, c.State())

	require.True(t, c.MarkConnected(Binding{
		HTTPPort: 3004, WSPort: 3007, WSPath: "/abc",
		HTTPURI: "http://127.0.0.1:3004", WSURI: "ws://127.0.0.1:3007/abc",
	}))
	assert.Equal(t, Connected, c.State())
	assert.Equal(t, 3004, c.HTTPPort())
	assert.Equal(t, 3007, c.WSPort())
	assert.Equal(t, "/abc", c.WSPath())
	assert.Equal(t, "http://127.0.0.1:3004", c.HTTPURI())

	assert.Equal(t, Connected, c.MarkDisconnected())
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 3000, c.HTTPPort(), "actual ports reset to desired")
	assert.Equal(t, 3001, c.WSPort())
	assert.Empty(t, c.WSURI())
}

func TestConnection_SetDesiredWhileConnected(t *testing.T) {
	c := New("", "127.0.0.1", 3000)
	require.True(t, c.BeginConnecting())
	require.True(t, c.MarkConnected(Binding{HTTPPort: 3000, WSPort: 3001}))

	c.SetDesired("127.0.0.2", 4000)
	assert.Equal(t, 3000, c.HTTPPort(), "running connection keeps its actual port")
	assert.Equal(t, 4000, c.DesiredHTTPPort())
	assert.Equal(t, 4001, c.DesiredWSPort())

	c.MarkDisconnected()
	assert.Equal(t, 4000, c.HTTPPort())
	assert.Equal(t, "127.0.0.2", c.Host())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}

func TestIdentityResolver(t *testing.T) {
	u, _ := url.Parse("http://0.0.0.0:3000")
	got, err := IdentityResolver(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:3000", got.String())

	u, _ = url.Parse("ws://127.0.0.2:3001/x")
	got, err = IdentityResolver(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.2:3001/x", got.String())
}

func TestManager_SeedsAndUpdates(t *testing.T) {
	n := &recordingNotifier{}
	m := NewManager(Settings{Host: "127.0.0.1", Port: 3000}, nil, n)

	a := m.Connection("/a")
	assert.Same(t, a, m.Connection("/a"))
	assert.Equal(t, 3000, a.DesiredHTTPPort())

	require.True(t, a.BeginConnecting())
	require.True(t, a.MarkConnected(Binding{HTTPPort: 3000, WSPort: 3001}))

	m.UpdateSettings(Settings{Host: "127.0.0.1", Port: 5000})
	assert.Equal(t, 3000, a.HTTPPort(), "no forced restart")
	assert.Equal(t, 5000, a.DesiredHTTPPort())

	b := m.Connection("/b")
	assert.Equal(t, 5000, b.DesiredHTTPPort())
	assert.Len(t, m.Connections(), 2)

	m.Remove("/a")
	_, ok := m.Lookup("/a")
	assert.False(t, ok)
	assert.Empty(t, n.msgs)
}

func TestManager_InvalidHostWarnsOnce(t *testing.T) {
	n := &recordingNotifier{}
	m := NewManager(Settings{Host: "localhost", Port: 3000}, nil, n)
	assert.Equal(t, "127.0.0.1", m.Settings().Host)
	require.Len(t, n.msgs, 1)

	m.UpdateSettings(Settings{Host: "localhost", Port: 3000})
	assert.Len(t, n.msgs, 1, "same bad value is not reported again")

	m.UpdateSettings(Settings{Host: "nope", Port: 0})
	assert.Len(t, n.msgs, 2)
	assert.Equal(t, 3000, m.Settings().Port)
	assert.Equal(t, "127.0.0.1", m.Connection("/x").Host())
}
