package models

import (
	"encoding/json"
	"time"
)

// PendingMutation is one row of the client-side durable queue. LocalID is
// the SQLite rowid and fixes FIFO order within a partition; ExternalID is
// the idempotency key the server dedupes on.
type PendingMutation struct {
	LocalID      int64           `json:"local_id"`
	MutationType string          `json:"mutation_type"`
	ExternalID   string          `json:"external_id"`
	Payload      json.RawMessage `json:"payload"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	AttemptCount int             `json:"attempt_count"`
	LastError    string          `json:"last_error,omitempty"`
	Rejected     bool            `json:"rejected"`
}

// Terminal and non-terminal outcomes of sending one queued mutation.
const (
	OUTCOME_COMMITTED         = "committed"
	OUTCOME_DUPLICATE         = "duplicate"
	OUTCOME_REJECTED          = "rejected"
	OUTCOME_TRANSIENT_FAILURE = "transient_failure"
)

type SyncOutcome struct {
	LocalID    int64  `json:"local_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
}
