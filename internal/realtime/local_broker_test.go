package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBroker_DeliversToConversationSubscribers(t *testing.T) {
	b := NewLocalBroker()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "conv-1")
	require.NoError(t, err)
	defer sub.Close()

	other, err := b.Subscribe(ctx, "conv-2")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, b.Publish(ctx, "conv-1", Event{Type: EventMessageCreated, ConversationID: "conv-1", MessageID: "m1"}))

	select {
	case ev := <-sub.C:
		assert.Equal(t, "m1", ev.MessageID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event on other conversation: %+v", ev)
	default:
	}
}

func TestLocalBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewLocalBroker()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "conv-1")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, b.Publish(ctx, "conv-1", Event{Type: EventMessageCreated}))
	}

	assert.Len(t, sub.C, subscriberBuffer)
}

func TestLocalBroker_ContextCancelClosesSubscription(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, "conv-1")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	sub.Close()
	assert.NoError(t, b.Publish(context.Background(), "conv-1", Event{}))
}
