package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Connected](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), Connected{Workspace: "/ws", HTTPPort: 3000}))

	select {
	case got := <-ch:
		require.Equal(t, 3000, got.HTTPPort)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Event](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), ReloadSent{Clients: 2}))
	require.NoError(t, b.Publish(context.Background(), Disconnected{}))

	require.Equal(t, "reload", (<-ch).Kind())
	require.Equal(t, "disconnected", (<-ch).Kind())
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[RequestLogged](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, RequestLogged{Status: 200})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryRuntime, classified.Category())
}

func TestBus_UnsubscribeReleasesBlockedPublisher(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[RequestLogged](b, 0)
	errCh := make(chan error, 1)
	go func() { errCh <- b.Publish(context.Background(), RequestLogged{}) }()

	time.Sleep(20 * time.Millisecond)
	unsubscribe()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher stayed blocked after unsubscribe")
	}
	require.Equal(t, 0, SubscriberCount[RequestLogged](b))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[Connected](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)

	err := b.Publish(context.Background(), Connected{})
	require.Error(t, err)

	late, _ := Subscribe[Connected](b, 1)
	_, ok = <-late
	require.False(t, ok)
}

func TestBus_NilBusDropsEvents(t *testing.T) {
	var b *Bus
	require.NoError(t, b.Publish(context.Background(), Connected{}))
	require.Equal(t, 0, SubscriberCount[Connected](b))
}

func TestBus_OtherTypesSkipIdleSubscription(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[Connected](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, b.Publish(ctx, RequestLogged{Status: 200}))
	require.Equal(t, 1, SubscriberCount[Connected](b))
	require.Equal(t, 0, SubscriberCount[Event](b))
}
