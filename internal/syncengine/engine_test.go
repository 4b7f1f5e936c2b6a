package syncengine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/events"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/offline"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, serverURL string) (*Engine, *offline.Store, *events.Bus) {
	t.Helper()
	store, err := offline.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus()
	engine := New(store, resty.New().SetTimeout(5*time.Second), bus, zap.NewNop(), serverURL)
	return engine, store, bus
}

func enqueueSales(t *testing.T, store *offline.Store, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		payload := &models.SalePayload{
			LocationID:    1,
			Items:         []models.SaleItemPayload{{ProductID: 1, Quantity: 1, UnitPrice: 4, Subtotal: 4}},
			Subtotal:      4,
			TotalAmount:   4,
			PaymentMethod: models.PAYMENT_CASH,
		}
		_, externalID, err := store.Enqueue(context.Background(), models.MUTATION_SALE, payload)
		require.NoError(t, err)
		ids = append(ids, externalID)
	}
	return ids
}

func externalIDOf(t *testing.T, body []byte) string {
	t.Helper()
	var p struct {
		ExternalID string `json:"external_id"`
	}
	require.NoError(t, json.Unmarshal(body, &p))
	return p.ExternalID
}

func readBody(r *http.Request) []byte {
	b, _ := io.ReadAll(r.Body)
	return b
}

func TestDrainRemovesCommittedSales(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "true", r.Header.Get("X-Sync-Request"))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": false})
	}))
	defer srv.Close()

	engine, store, bus := newTestEngine(t, srv.URL)
	enqueueSales(t, store, 3)
	cycles := bus.SubscribeSyncCycles()

	engine.SyncNow(context.Background())

	// Three sends, not six: every sale also sits in the fallback log, and
	// the drain deduplicates the union by external id.
	assert.Equal(t, int32(3), requests.Load())
	pending, err := store.ListPending(context.Background(), models.MUTATION_SALE)
	require.NoError(t, err)
	assert.Empty(t, pending)

	summary := <-cycles
	assert.Equal(t, 3, summary.Synced)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Pending)
}

func TestPartialFailureRetainsOnlyFailedItem(t *testing.T) {
	ids := make([]string, 0, 5)
	var mu sync.Mutex
	var failID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := externalIDOf(t, readBody(r))
		mu.Lock()
		ids = append(ids, id)
		fail := id == failID
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": false})
	}))
	defer srv.Close()

	engine, store, _ := newTestEngine(t, srv.URL)
	queued := enqueueSales(t, store, 5)
	failID = queued[2]

	engine.SyncNow(context.Background())

	assert.Equal(t, queued, ids, "items sent in FIFO order")

	pending, err := store.ListPending(context.Background(), models.MUTATION_SALE)
	require.NoError(t, err)
	require.Len(t, pending, 1, "only the failed item stays queued")
	assert.Equal(t, failID, pending[0].ExternalID)
	assert.Equal(t, 1, pending[0].AttemptCount)
}

func TestRejectedExcludedFromNextDrain(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"error": true, "message": "product not found"})
	}))
	defer srv.Close()

	engine, store, _ := newTestEngine(t, srv.URL)
	queued := enqueueSales(t, store, 1)

	engine.SyncNow(context.Background())
	engine.SyncNow(context.Background())

	assert.Equal(t, int32(1), requests.Load(), "rejected mutation is not retried")

	rejected, err := store.ListRejected(context.Background())
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, queued[0], rejected[0].ExternalID)
	assert.Equal(t, "product not found", rejected[0].LastError)
}

func TestDuplicateResponseClearsQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": true})
	}))
	defer srv.Close()

	engine, store, bus := newTestEngine(t, srv.URL)
	enqueueSales(t, store, 1)
	cycles := bus.SubscribeSyncCycles()

	engine.SyncNow(context.Background())

	pending, err := store.ListPending(context.Background(), models.MUTATION_SALE)
	require.NoError(t, err)
	assert.Empty(t, pending, "a duplicate is a terminal success")

	summary := <-cycles
	assert.Equal(t, 1, summary.Synced)
}

func TestSingleFlightCollapsesConcurrentTriggers(t *testing.T) {
	release := make(chan struct{})
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": false})
	}))
	defer srv.Close()

	engine, store, _ := newTestEngine(t, srv.URL)
	enqueueSales(t, store, 1)

	done := make(chan struct{})
	go func() {
		engine.SyncNow(context.Background())
		close(done)
	}()

	// Wait until the first cycle is inside the send.
	require.Eventually(t, func() bool { return requests.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// A second trigger during the cycle must return without overlapping.
	returned := make(chan struct{})
	go func() {
		engine.SyncNow(context.Background())
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent SyncNow blocked instead of deferring")
	}

	close(release)
	<-done

	// The deferred re-run finds an empty queue, so exactly one send happened.
	assert.Equal(t, int32(1), requests.Load())
}

func TestTransitionBeforeRunStillTriggersDrain(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": false})
	}))
	defer srv.Close()

	engine, store, bus := newTestEngine(t, srv.URL)
	enqueueSales(t, store, 1)

	// The monitor can report the first offline-to-online transition before
	// the Run goroutine is scheduled. The subscription taken at
	// construction must buffer it, not lose it.
	bus.PublishConnectivity(events.ConnectivityChanged{WasOnline: false, IsOnline: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	require.Eventually(t, func() bool { return requests.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestTriggerDuringReleaseWindowStillRuns(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": false})
	}))
	defer srv.Close()

	engine, store, _ := newTestEngine(t, srv.URL)
	enqueueSales(t, store, 1)
	ctx := context.Background()

	// A running cycle owns the flag and has already passed its final
	// rerun check.
	engine.inProgress.Store(true)

	// A manual trigger lands in that window: it parks a re-run and returns.
	engine.SyncNow(ctx)
	require.True(t, engine.rerun.Load())
	assert.Zero(t, requests.Load())

	// When the owning cycle releases the flag it must claim the parked
	// trigger back instead of leaving it behind forever.
	require.False(t, engine.release(ctx), "release must hand the flag back for the parked re-run")
	assert.False(t, engine.rerun.Load())

	engine.drainCycle(ctx)
	engine.inProgress.Store(false)

	assert.Equal(t, int32(1), requests.Load())
	pending, err := store.ListPending(ctx, models.MUTATION_SALE)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOnlineTransitionTriggersDrain(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"is_duplicate": false})
	}))
	defer srv.Close()

	engine, store, bus := newTestEngine(t, srv.URL)
	enqueueSales(t, store, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	bus.PublishConnectivity(events.ConnectivityChanged{WasOnline: false, IsOnline: true})

	require.Eventually(t, func() bool { return requests.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
