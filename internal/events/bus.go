// Package events carries the notifications the client components exchange:
// the connectivity monitor announces transitions, the sync engine announces
// finished drain cycles.
package events

import "sync"

// ConnectivityChanged is published on every verdict transition, never on a
// repeated verdict.
type ConnectivityChanged struct {
	WasOnline bool
	IsOnline  bool
}

// SyncCycleCompleted summarizes one drain cycle.
type SyncCycleCompleted struct {
	Synced   int
	Failed   int
	Rejected int
	Pending  int
}

// Bus is a small typed fan-out. Subscriber channels are buffered and a slow
// subscriber drops events rather than blocking a publisher.
type Bus struct {
	mu           sync.Mutex
	connectivity []chan ConnectivityChanged
	syncCycles   []chan SyncCycleCompleted
}

func NewBus() *Bus {
	return &Bus{}
}

const subscriberBuffer = 16

func (b *Bus) SubscribeConnectivity() <-chan ConnectivityChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan ConnectivityChanged, subscriberBuffer)
	b.connectivity = append(b.connectivity, ch)
	return ch
}

func (b *Bus) SubscribeSyncCycles() <-chan SyncCycleCompleted {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan SyncCycleCompleted, subscriberBuffer)
	b.syncCycles = append(b.syncCycles, ch)
	return ch
}

func (b *Bus) PublishConnectivity(e ConnectivityChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.connectivity {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) PublishSyncCycle(e SyncCycleCompleted) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.syncCycles {
		select {
		case ch <- e:
		default:
		}
	}
}
