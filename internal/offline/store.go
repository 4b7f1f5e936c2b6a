// Package offline is the durable client-side store: queued mutations that
// survive restarts, a redundant append-only sale log, and wholesale caches
// of server reference data so the register keeps working with no network.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrUnknownMutationType = errors.New("unknown mutation type")
	ErrUnknownCache        = errors.New("unknown cache name")
	ErrMutationNotFound    = errors.New("mutation not found")
)

// Store wraps a single SQLite file. SQLite allows one writer at a time, so
// all writes go through writeMu the way concurrent readers expect.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var queueTables = map[string]string{
	models.MUTATION_SALE:     "pending_sales",
	models.MUTATION_ORDER:    "pending_orders",
	models.MUTATION_CUSTOMER: "pending_customers",
}

var cacheTables = map[string]bool{
	"products":   true,
	"customers":  true,
	"categories": true,
}

func (s *Store) migrate() error {
	stmts := []string{}
	for _, table := range queueTables {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL,
			enqueued_at TIMESTAMP NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			rejected INTEGER NOT NULL DEFAULT 0
		)`, table))
	}
	// sale_log is the belt-and-braces copy of every sale ever enqueued on
	// this device; entries are cleared only once the server confirms them.
	stmts = append(stmts, `CREATE TABLE IF NOT EXISTS sale_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL,
		enqueued_at TIMESTAMP NOT NULL
	)`)
	for table := range cacheTables {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			payload TEXT NOT NULL
		)`, table))
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

// marshalWithExternalID stamps the store-assigned external id into the
// payload so the JSON sent to the server always carries the same
// idempotency key the queue row is tracked under.
func marshalWithExternalID(payload any, externalID string) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	fields["external_id"], _ = json.Marshal(externalID)
	stamped, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return stamped, nil
}

func tableFor(mutationType string) (string, error) {
	table, ok := queueTables[mutationType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownMutationType, mutationType)
	}
	return table, nil
}

// Enqueue stores one mutation durably and assigns its external id. Sales
// are additionally appended to the redundant sale log.
func (s *Store) Enqueue(ctx context.Context, mutationType string, payload any) (int64, string, error) {
	table, err := tableFor(mutationType)
	if err != nil {
		return 0, "", err
	}

	externalID := uuid.NewString()
	raw, err := marshalWithExternalID(payload, externalID)
	if err != nil {
		return 0, "", err
	}
	now := time.Now().UTC()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (external_id, payload, enqueued_at) VALUES (?,?,?)`, table),
		externalID, string(raw), now,
	)
	if err != nil {
		return 0, "", fmt.Errorf("enqueue failed: %w", err)
	}
	localID, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}

	if mutationType == models.MUTATION_SALE {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sale_log (external_id, payload, enqueued_at) VALUES (?,?,?)`,
			externalID, string(raw), now,
		)
		if err != nil {
			return 0, "", fmt.Errorf("append sale log failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return localID, externalID, nil
}

// ListPending returns the non-rejected queue for one partition, oldest first.
func (s *Store) ListPending(ctx context.Context, mutationType string) ([]*models.PendingMutation, error) {
	table, err := tableFor(mutationType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, external_id, payload, enqueued_at, attempt_count, last_error, rejected
		 FROM %s WHERE rejected = 0 ORDER BY id`, table))
	if err != nil {
		return nil, fmt.Errorf("list pending failed: %w", err)
	}
	defer rows.Close()

	return scanMutations(rows, mutationType)
}

// ListSaleLog returns every sale still in the fallback log, oldest first.
func (s *Store) ListSaleLog(ctx context.Context) ([]*models.PendingMutation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, payload, enqueued_at, 0, '', 0 FROM sale_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sale log failed: %w", err)
	}
	defer rows.Close()

	return scanMutations(rows, models.MUTATION_SALE)
}

func scanMutations(rows *sql.Rows, mutationType string) ([]*models.PendingMutation, error) {
	var out []*models.PendingMutation
	for rows.Next() {
		var m models.PendingMutation
		var payload string
		var rejected int
		if err := rows.Scan(&m.LocalID, &m.ExternalID, &payload, &m.EnqueuedAt, &m.AttemptCount, &m.LastError, &rejected); err != nil {
			return nil, fmt.Errorf("scan mutation failed: %w", err)
		}
		m.MutationType = mutationType
		m.Payload = json.RawMessage(payload)
		m.Rejected = rejected != 0
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Remove drops a confirmed mutation from its queue and, for sales, from
// the fallback log as well.
func (s *Store) Remove(ctx context.Context, mutationType, externalID string) error {
	table, err := tableFor(mutationType)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE external_id = ?`, table), externalID); err != nil {
		return fmt.Errorf("remove mutation failed: %w", err)
	}
	if mutationType == models.MUTATION_SALE {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sale_log WHERE external_id = ?`, externalID); err != nil {
			return fmt.Errorf("remove sale log entry failed: %w", err)
		}
	}
	return tx.Commit()
}

// RecordFailure bumps the attempt counter after a transient failure. The
// mutation stays queued; retries are unbounded.
func (s *Store) RecordFailure(ctx context.Context, mutationType, externalID, lastError string) error {
	table, err := tableFor(mutationType)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET attempt_count = attempt_count + 1, last_error = ? WHERE external_id = ?`, table),
		lastError, externalID,
	)
	if err != nil {
		return fmt.Errorf("record failure failed: %w", err)
	}
	return requireRow(res)
}

// MarkRejected takes a mutation out of the retry loop after the server
// answered with a terminal rejection. The queue row stays visible for
// manual review; a rejected sale also leaves the fallback log so the next
// drain does not resend it from there.
func (s *Store) MarkRejected(ctx context.Context, mutationType, externalID, reason string) error {
	table, err := tableFor(mutationType)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET rejected = 1, last_error = ? WHERE external_id = ?`, table),
		reason, externalID,
	)
	if err != nil {
		return fmt.Errorf("mark rejected failed: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if mutationType == models.MUTATION_SALE {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sale_log WHERE external_id = ?`, externalID); err != nil {
			return fmt.Errorf("remove sale log entry failed: %w", err)
		}
	}
	return tx.Commit()
}

// Requeue puts a rejected mutation back into rotation after an operator
// resolved the underlying problem. A requeued sale is re-entered into the
// fallback log.
func (s *Store) Requeue(ctx context.Context, mutationType, externalID string) error {
	table, err := tableFor(mutationType)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET rejected = 0, attempt_count = 0, last_error = '' WHERE external_id = ? AND rejected = 1`, table),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("requeue failed: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if mutationType == models.MUTATION_SALE {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sale_log (external_id, payload, enqueued_at)
			 SELECT external_id, payload, enqueued_at FROM pending_sales WHERE external_id = ?`,
			externalID,
		)
		if err != nil {
			return fmt.Errorf("restore sale log entry failed: %w", err)
		}
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMutationNotFound
	}
	return nil
}

// ListRejected returns rejected mutations across all partitions, oldest
// first, for the operator's queue view.
func (s *Store) ListRejected(ctx context.Context) ([]*models.PendingMutation, error) {
	var out []*models.PendingMutation
	for _, mutationType := range []string{models.MUTATION_SALE, models.MUTATION_ORDER, models.MUTATION_CUSTOMER} {
		table := queueTables[mutationType]
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT id, external_id, payload, enqueued_at, attempt_count, last_error, rejected
			 FROM %s WHERE rejected = 1 ORDER BY id`, table))
		if err != nil {
			return nil, fmt.Errorf("list rejected failed: %w", err)
		}
		mutations, err := scanMutations(rows, mutationType)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, mutations...)
	}
	return out, nil
}

// PendingCount counts everything still waiting to sync: non-rejected queue
// rows plus sale log entries whose external id is no longer queued.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var total int
	for _, table := range queueTables {
		var n int
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE rejected = 0`, table)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("pending count failed: %w", err)
		}
		total += n
	}

	var orphaned int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sale_log
		 WHERE external_id NOT IN (SELECT external_id FROM pending_sales)`).Scan(&orphaned)
	if err != nil {
		return 0, fmt.Errorf("pending count failed: %w", err)
	}
	return total + orphaned, nil
}

// Cache replaces one reference cache wholesale: clear then repopulate in a
// single transaction so readers never observe a half-filled cache.
func (s *Store) Cache(ctx context.Context, name string, payloads []json.RawMessage) error {
	if !cacheTables[name] {
		return fmt.Errorf("%w: %s", ErrUnknownCache, name)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, name)); err != nil {
		return fmt.Errorf("clear cache failed: %w", err)
	}
	for _, p := range payloads {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (payload) VALUES (?)`, name), string(p)); err != nil {
			return fmt.Errorf("fill cache failed: %w", err)
		}
	}
	return tx.Commit()
}

// GetCached returns the raw cached rows in insertion order.
func (s *Store) GetCached(ctx context.Context, name string) ([]json.RawMessage, error) {
	if !cacheTables[name] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCache, name)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT payload FROM %s ORDER BY id`, name))
	if err != nil {
		return nil, fmt.Errorf("read cache failed: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cache failed: %w", err)
		}
		out = append(out, json.RawMessage(payload))
	}
	return out, rows.Err()
}
