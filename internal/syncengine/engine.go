// Package syncengine drains the durable offline queue to the server. One
// cycle runs at a time; a trigger arriving mid-cycle schedules exactly one
// follow-up cycle instead of overlapping.
package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Waesta/Wapos-sub011/internal/events"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/offline"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// partitions are drained in this order; within a partition FIFO holds, and
// a transient failure on one item never blocks the items behind it.
var partitions = []string{models.MUTATION_SALE, models.MUTATION_ORDER, models.MUTATION_CUSTOMER}

var ingestPaths = map[string]string{
	models.MUTATION_SALE:     "/api/v1/sales",
	models.MUTATION_ORDER:    "/api/v1/orders",
	models.MUTATION_CUSTOMER: "/api/v1/customers",
}

type Engine struct {
	store       *offline.Store
	client      *resty.Client
	bus         *events.Bus
	logger      *zap.Logger
	serverAddr  string
	transitions <-chan events.ConnectivityChanged

	inProgress atomic.Bool
	rerun      atomic.Bool
}

// New wires the engine onto the bus. The connectivity subscription is taken
// here, not in Run, so a transition published before the Run goroutine is
// scheduled still triggers a drain.
func New(store *offline.Store, client *resty.Client, bus *events.Bus, logger *zap.Logger, serverAddr string) *Engine {
	return &Engine{
		store:       store,
		client:      client,
		bus:         bus,
		logger:      logger,
		serverAddr:  strings.TrimRight(serverAddr, "/"),
		transitions: bus.SubscribeConnectivity(),
	}
}

// Run reacts to connectivity transitions until the context ends. A
// transition to online triggers a drain; going offline does nothing, the
// queue just keeps accumulating.
func (e *Engine) Run(ctx context.Context) {
	transitions := e.transitions
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-transitions:
			if ev.IsOnline && !ev.WasOnline {
				e.SyncNow(ctx)
			}
		}
	}
}

// SyncNow triggers a drain cycle. If one is already running the request is
// not lost: one follow-up cycle runs as soon as the current one finishes.
func (e *Engine) SyncNow(ctx context.Context) {
	if !e.inProgress.CompareAndSwap(false, true) {
		e.rerun.Store(true)
		return
	}

	for {
		e.drainCycle(ctx)
		if ctx.Err() == nil && e.rerun.CompareAndSwap(true, false) {
			continue
		}
		if e.release(ctx) {
			return
		}
	}
}

// release gives up the in-progress flag, then claims it back if a trigger
// parked a re-run between the last rerun check and the release. Reports
// whether the caller is done draining.
func (e *Engine) release(ctx context.Context) bool {
	e.inProgress.Store(false)
	if ctx.Err() != nil || !e.rerun.Load() {
		return true
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		// Another trigger owns the flag now; it drains the queue and
		// checks rerun on its own way out.
		return true
	}
	e.rerun.Store(false)
	return false
}

func (e *Engine) drainCycle(ctx context.Context) {
	var synced, failed, rejected int

	for _, mutationType := range partitions {
		items, err := e.collect(ctx, mutationType)
		if err != nil {
			e.logger.Error("collect queue failed",
				zap.String("mutation_type", mutationType),
				zap.Error(err))
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			outcome := e.send(ctx, item)
			switch outcome.Status {
			case models.OUTCOME_COMMITTED, models.OUTCOME_DUPLICATE:
				if err := e.store.Remove(ctx, mutationType, item.ExternalID); err != nil {
					e.logger.Error("remove confirmed mutation failed",
						zap.String("external_id", item.ExternalID),
						zap.Error(err))
					continue
				}
				synced++
			case models.OUTCOME_REJECTED:
				rejected++
				err := e.store.MarkRejected(ctx, mutationType, item.ExternalID, outcome.Detail)
				if err != nil {
					// The server records nothing on a rejection, so the
					// mutation must never be dropped here. Leave it where
					// it is for an operator to resolve.
					e.logger.Error("mark rejected failed, mutation kept",
						zap.String("external_id", item.ExternalID),
						zap.Error(err))
				}
			default:
				failed++
				if err := e.store.RecordFailure(ctx, mutationType, item.ExternalID, outcome.Detail); err != nil {
					e.logger.Warn("record failure failed",
						zap.String("external_id", item.ExternalID),
						zap.Error(err))
				}
			}
		}
	}

	pending, err := e.store.PendingCount(ctx)
	if err != nil {
		e.logger.Error("pending count failed", zap.Error(err))
	}

	e.logger.Info("sync cycle completed",
		zap.Int("synced", synced),
		zap.Int("failed", failed),
		zap.Int("rejected", rejected),
		zap.Int("pending", pending))
	e.bus.PublishSyncCycle(events.SyncCycleCompleted{
		Synced:   synced,
		Failed:   failed,
		Rejected: rejected,
		Pending:  pending,
	})
}

// collect returns the partition queue; for sales it is the union of the
// structured queue and the fallback log, deduplicated by external id with
// queue entries winning so attempt bookkeeping is preserved.
func (e *Engine) collect(ctx context.Context, mutationType string) ([]*models.PendingMutation, error) {
	pending, err := e.store.ListPending(ctx, mutationType)
	if err != nil {
		return nil, err
	}
	if mutationType != models.MUTATION_SALE {
		return pending, nil
	}

	logged, err := e.store.ListSaleLog(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(pending))
	for _, m := range pending {
		seen[m.ExternalID] = true
	}
	merged := pending
	for _, m := range logged {
		if !seen[m.ExternalID] {
			merged = append(merged, m)
		}
	}
	return merged, nil
}

// send posts one mutation and classifies the response. Any transport error
// or retryable status leaves the item queued for the next cycle.
func (e *Engine) send(ctx context.Context, item *models.PendingMutation) models.SyncOutcome {
	outcome := models.SyncOutcome{LocalID: item.LocalID, ExternalID: item.ExternalID}

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(models.SyncRequestHeader, "true").
		SetBody([]byte(item.Payload)).
		Post(e.serverAddr + ingestPaths[item.MutationType])
	if err != nil {
		outcome.Status = models.OUTCOME_TRANSIENT_FAILURE
		outcome.Detail = err.Error()
		return outcome
	}

	switch {
	case resp.StatusCode() == 201:
		outcome.Status = models.OUTCOME_COMMITTED
	case resp.StatusCode() >= 200 && resp.StatusCode() < 300:
		outcome.Status = models.OUTCOME_DUPLICATE
		if !isDuplicateBody(resp.Body()) {
			outcome.Status = models.OUTCOME_COMMITTED
		}
	case resp.StatusCode() == 422:
		outcome.Status = models.OUTCOME_REJECTED
		outcome.Detail = errorMessage(resp.Body())
	default:
		// 401/403/419/429, 5xx and everything unexpected: retry later.
		outcome.Status = models.OUTCOME_TRANSIENT_FAILURE
		outcome.Detail = fmt.Sprintf("server answered %d", resp.StatusCode())
	}
	return outcome
}

func isDuplicateBody(body []byte) bool {
	var resp struct {
		IsDuplicate bool `json:"is_duplicate"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.IsDuplicate
}

func errorMessage(body []byte) string {
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == "" {
		return "rejected by server"
	}
	return resp.Message
}
