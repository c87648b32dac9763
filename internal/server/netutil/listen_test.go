package netutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
)

func occupy(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestListen_MovesPastPortInUse(t *testing.T) {
	_, busy := occupy(t)

	var attempts []Attempt
	b, err := Listen(context.Background(), ListenConfig{
		Host:      "127.0.0.1",
		Port:      busy,
		OnAttempt: func(a Attempt) { attempts = append(attempts, a) },
	})
	require.NoError(t, err)
	defer b.Close()

	assert.Greater(t, b.Port, busy)
	assert.Equal(t, "127.0.0.1", b.Host)
	require.GreaterOrEqual(t, len(attempts), 2)
	assert.Equal(t, metrics.BindInUse, attempts[0].Outcome)
	assert.Equal(t, busy, attempts[0].Port)
	assert.Equal(t, metrics.BindOK, attempts[len(attempts)-1].Outcome)
}

func TestListen_FallsBackToLoopback(t *testing.T) {
	// TEST-NET-1 is never assigned to a local interface
	var attempts []Attempt
	b, err := Listen(context.Background(), ListenConfig{
		Host:      "192.0.2.1",
		Port:      0,
		OnAttempt: func(a Attempt) { attempts = append(attempts, a) },
	})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, LoopbackHost, b.Host)
	assert.Equal(t, metrics.BindHostFallback, attempts[0].Outcome)
}

func TestListen_UnknownErrorStops(t *testing.T) {
	var attempts []Attempt
	_, err := Listen(context.Background(), ListenConfig{
		Host:      "127.0.0.1",
		Port:      70000,
		OnAttempt: func(a Attempt) { attempts = append(attempts, a) },
	})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBind))
	require.Len(t, attempts, 1)
	assert.Equal(t, metrics.BindFailed, attempts[0].Outcome)
}

func TestListen_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Listen(ctx, ListenConfig{Port: 0})
	require.Error(t, err)
}

func TestOccupiedAndFindFreePort(t *testing.T) {
	ln, busy := occupy(t)
	assert.True(t, Occupied("127.0.0.1", busy, ProbeTimeout))

	port, err := FindFreePort(context.Background(), "127.0.0.1", busy, ProbeTimeout)
	require.NoError(t, err)
	assert.Greater(t, port, busy)

	require.NoError(t, ln.Close())
	assert.False(t, Occupied("127.0.0.1", busy, 100*time.Millisecond))
}
