package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayflow/internal/chat"
	"dayflow/internal/transport"
)

func TestRelayForwardsAndWakes(t *testing.T) {
	ctrl := chat.NewController(nil)
	pending := chat.NewAssistantMessage()
	require.NoError(t, ctrl.Append(pending))

	events := make(chan struct{}, 1)
	relay := NewRelay(ctrl, events)

	relay.OnTypingStateChanged(true)
	assert.True(t, ctrl.TypingIndicatorVisible())

	relay.OnTokenArrived(pending.ID, "hello")
	relay.OnStreamFinished(pending.ID)

	got, ok := ctrl.Message(pending.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)
	assert.False(t, got.IsStreaming)

	// Wakeups collapsed into the single buffered slot.
	select {
	case <-events:
	default:
		t.Fatal("expected a pending wakeup")
	}
	select {
	case <-events:
		t.Fatal("expected wakeups to collapse")
	default:
	}
}

func TestRelayErrorPath(t *testing.T) {
	ctrl := chat.NewController(nil)
	pending := chat.NewAssistantMessage()
	require.NoError(t, ctrl.Append(pending))

	events := make(chan struct{}, 1)
	relay := NewRelay(ctrl, events)

	relay.OnError(pending.ID, transport.ServerError(502))

	got, _ := ctrl.Message(pending.ID)
	assert.True(t, got.HasError())
	assert.True(t, got.ErrorRetryable)
}

func TestNotifyNeverBlocks(t *testing.T) {
	events := make(chan struct{}, 1)
	for i := 0; i < 10; i++ {
		Notify(events)
	}
}
