package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOutReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.SubscribeConnectivity()
	b := bus.SubscribeConnectivity()

	bus.PublishConnectivity(ConnectivityChanged{IsOnline: true})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.True(t, (<-a).IsOnline)
	assert.True(t, (<-b).IsOnline)
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewBus()
	bus.SubscribeSyncCycles() // never drained

	// Overflow the buffer; publish must not block.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.PublishSyncCycle(SyncCycleCompleted{Synced: i})
	}
}

func TestSyncCycleSubscription(t *testing.T) {
	bus := NewBus()
	ch := bus.SubscribeSyncCycles()

	bus.PublishSyncCycle(SyncCycleCompleted{Synced: 4, Failed: 1, Pending: 1})

	got := <-ch
	assert.Equal(t, 4, got.Synced)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Pending)
}
