package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	err  error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.msgs == nil {
		p.msgs = make(map[string][][]byte)
	}
	p.msgs[subject] = append(p.msgs[subject], data)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs[subject])
}

func TestNATSSink_ForwardEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewNATSSink(pub, "livepreview", nil)
	sink.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, sink.Forward(RequestLogged{Workspace: "/ws", Method: "GET", URL: "/a.html", Status: 404}))

	require.Equal(t, 1, pub.count("livepreview.request"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs["livepreview.request"][0], &got))
	assert.Equal(t, "request", got["kind"])
	assert.Equal(t, "2024-01-02T03:04:05Z", got["time"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "/a.html", data["url"])
	assert.InDelta(t, 404, data["status"], 0)
}

func TestNATSSink_ForwardError(t *testing.T) {
	sink := NewNATSSink(&recordingPublisher{err: errors.New("down")}, "lp", nil)
	err := sink.Forward(Disconnected{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestNATSSink_RunForwardsBusEvents(t *testing.T) {
	b := NewBus()
	pub := &recordingPublisher{}
	sink := NewNATSSink(pub, "lp", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sink.Run(ctx, b)
		close(done)
	}()

	require.Eventually(t, func() bool { return SubscriberCount[Event](b) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Publish(ctx, Connected{Workspace: "/ws"}))
	require.Eventually(t, func() bool { return pub.count("lp.connected") == 1 }, time.Second, 5*time.Millisecond)

	b.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink did not stop after bus close")
	}
}
