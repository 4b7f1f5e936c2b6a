package offline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func samplePayload() *models.SalePayload {
	return &models.SalePayload{
		LocationID:    1,
		Items:         []models.SaleItemPayload{{ProductID: 1, Quantity: 2, UnitPrice: 5, Subtotal: 10}},
		Subtotal:      10,
		TotalAmount:   10,
		PaymentMethod: models.PAYMENT_CASH,
	}
}

func TestEnqueueStampsExternalID(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	localID, externalID, err := s.Enqueue(ctx, models.MUTATION_SALE, samplePayload())
	require.NoError(t, err)
	assert.Greater(t, localID, int64(0))
	require.NotEmpty(t, externalID)

	pending, err := s.ListPending(ctx, models.MUTATION_SALE)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var decoded models.SalePayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &decoded))
	assert.Equal(t, externalID, decoded.ExternalID)
}

func TestQueueSurvivesReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		_, externalID, err := s.Enqueue(ctx, models.MUTATION_SALE, samplePayload())
		require.NoError(t, err)
		ids = append(ids, externalID)
	}
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	pending, err := reopened.ListPending(ctx, models.MUTATION_SALE)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, m := range pending {
		assert.Equal(t, ids[i], m.ExternalID, "FIFO order must survive reopen")
	}

	logged, err := reopened.ListSaleLog(ctx)
	require.NoError(t, err)
	assert.Len(t, logged, 3)
}

func TestRemoveClearsQueueAndLog(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, externalID, err := s.Enqueue(ctx, models.MUTATION_SALE, samplePayload())
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, models.MUTATION_SALE, externalID))

	pending, err := s.ListPending(ctx, models.MUTATION_SALE)
	require.NoError(t, err)
	assert.Empty(t, pending)

	logged, err := s.ListSaleLog(ctx)
	require.NoError(t, err)
	assert.Empty(t, logged)

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordFailureKeepsItemQueued(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, externalID, err := s.Enqueue(ctx, models.MUTATION_ORDER, map[string]any{"location_id": 1})
	require.NoError(t, err)

	require.NoError(t, s.RecordFailure(ctx, models.MUTATION_ORDER, externalID, "server answered 500"))
	require.NoError(t, s.RecordFailure(ctx, models.MUTATION_ORDER, externalID, "server answered 503"))

	pending, err := s.ListPending(ctx, models.MUTATION_ORDER)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].AttemptCount)
	assert.Equal(t, "server answered 503", pending[0].LastError)
}

func TestRejectedLifecycle(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, externalID, err := s.Enqueue(ctx, models.MUTATION_SALE, samplePayload())
	require.NoError(t, err)

	require.NoError(t, s.MarkRejected(ctx, models.MUTATION_SALE, externalID, "product not found"))

	pending, err := s.ListPending(ctx, models.MUTATION_SALE)
	require.NoError(t, err)
	assert.Empty(t, pending, "rejected mutations leave the retry rotation")

	rejected, err := s.ListRejected(ctx)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, externalID, rejected[0].ExternalID)
	assert.Equal(t, "product not found", rejected[0].LastError)

	require.NoError(t, s.Requeue(ctx, models.MUTATION_SALE, externalID))

	pending, err = s.ListPending(ctx, models.MUTATION_SALE)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].AttemptCount)
	assert.Empty(t, pending[0].LastError)
}

func TestRejectedSaleLeavesFallbackLog(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, externalID, err := s.Enqueue(ctx, models.MUTATION_SALE, samplePayload())
	require.NoError(t, err)

	// A rejected sale must not keep replaying from the fallback log.
	require.NoError(t, s.MarkRejected(ctx, models.MUTATION_SALE, externalID, "product not found"))
	logged, err := s.ListSaleLog(ctx)
	require.NoError(t, err)
	assert.Empty(t, logged)

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Requeueing restores the log entry alongside the queue row.
	require.NoError(t, s.Requeue(ctx, models.MUTATION_SALE, externalID))
	logged, err = s.ListSaleLog(ctx)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, externalID, logged[0].ExternalID)
}

func TestRequeueUnknownID(t *testing.T) {
	s, _ := openTestStore(t)

	err := s.Requeue(context.Background(), models.MUTATION_SALE, "no-such-id")
	assert.ErrorIs(t, err, ErrMutationNotFound)
}

func TestCacheReplacedWholesale(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	first := []json.RawMessage{
		json.RawMessage(`{"id":1,"name":"Coffee"}`),
		json.RawMessage(`{"id":2,"name":"Tea"}`),
	}
	require.NoError(t, s.Cache(ctx, "products", first))

	second := []json.RawMessage{
		json.RawMessage(`{"id":3,"name":"Juice"}`),
	}
	require.NoError(t, s.Cache(ctx, "products", second))

	cached, err := s.GetCached(ctx, "products")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.JSONEq(t, `{"id":3,"name":"Juice"}`, string(cached[0]))
}

func TestUnknownMutationTypeAndCache(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.Enqueue(ctx, "refund", samplePayload())
	assert.ErrorIs(t, err, ErrUnknownMutationType)

	_, err = s.GetCached(ctx, "suppliers")
	assert.ErrorIs(t, err, ErrUnknownCache)
}

func TestPendingCountSpansPartitions(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.Enqueue(ctx, models.MUTATION_SALE, samplePayload())
	require.NoError(t, err)
	_, _, err = s.Enqueue(ctx, models.MUTATION_ORDER, map[string]any{"location_id": 1})
	require.NoError(t, err)
	_, rejectedID, err := s.Enqueue(ctx, models.MUTATION_CUSTOMER, map[string]any{"name": "Amina"})
	require.NoError(t, err)
	require.NoError(t, s.MarkRejected(ctx, models.MUTATION_CUSTOMER, rejectedID, "bad"))

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "rejected mutations are not pending")
}
