package dbrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPool opens a pgx pool and verifies the connection.
func ConnectPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := pgxpool.NewWithConfig(pingCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool failed: %w", err)
	}
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return db, nil
}

var bootstrapStatements = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		category_id BIGINT REFERENCES categories(id),
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		tax_rate NUMERIC(6,4) NOT NULL DEFAULT 0,
		stock_quantity NUMERIC(12,3) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL,
		sale_number TEXT NOT NULL UNIQUE,
		location_id BIGINT NOT NULL DEFAULT 0,
		customer_id BIGINT REFERENCES customers(id),
		sold_at TIMESTAMPTZ NOT NULL,
		subtotal NUMERIC(12,2) NOT NULL,
		discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL,
		payment_method TEXT NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT sales_external_id_key UNIQUE (external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_updated_at ON sales (updated_at)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id BIGSERIAL PRIMARY KEY,
		sale_id BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity NUMERIC(12,3) NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		subtotal NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL,
		location_id BIGINT NOT NULL DEFAULT 0,
		customer_id BIGINT REFERENCES customers(id),
		placed_at TIMESTAMPTZ NOT NULL,
		delivery_date TIMESTAMPTZ,
		total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT orders_external_id_key UNIQUE (external_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity NUMERIC(12,3) NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'cashier',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS journal_entries (
		id BIGSERIAL PRIMARY KEY,
		entry_number TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		source_id BIGINT NOT NULL,
		reference_no TEXT NOT NULL,
		entry_date DATE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		total_debit NUMERIC(12,2) NOT NULL,
		total_credit NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT journal_entries_source_key UNIQUE (source, source_id, reference_no)
	)`,
	`CREATE TABLE IF NOT EXISTS journal_entry_lines (
		id BIGSERIAL PRIMARY KEY,
		journal_entry_id BIGINT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		debit_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		credit_amount NUMERIC(12,2) NOT NULL DEFAULT 0
	)`,
}

// seedAccounts is the minimal chart of accounts sale postings need.
var seedAccounts = []struct {
	code, name, accountType string
}{
	{"1000", "Cash", "asset"},
	{"1100", "Accounts Receivable", "asset"},
	{"2100", "Tax Payable", "liability"},
	{"4000", "Sales Revenue", "revenue"},
}

// Bootstrap creates the schema and seeds the chart of accounts. Every
// statement is idempotent so it runs unconditionally at server start.
func Bootstrap(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range bootstrapStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap statement failed: %w", err)
		}
	}

	for _, a := range seedAccounts {
		_, err := db.Exec(ctx,
			`INSERT INTO accounts (code, name, account_type) VALUES ($1,$2,$3)
			 ON CONFLICT (code) DO NOTHING`,
			a.code, a.name, a.accountType,
		)
		if err != nil {
			return fmt.Errorf("seed account %s failed: %w", a.code, err)
		}
	}
	return nil
}
