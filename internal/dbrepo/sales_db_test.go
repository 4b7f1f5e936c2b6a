package dbrepo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPool connects to the database named by TEST_DATABASE_DSN and
// resets the transactional tables. Tests in this file are skipped when the
// variable is not set.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	db, err := ConnectPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Bootstrap(ctx, db))
	_, err = db.Exec(ctx, `
		TRUNCATE sale_items, sales, journal_entry_lines, journal_entries,
		         order_items, orders, customers, products, categories
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func seedTestProduct(t *testing.T, db *pgxpool.Pool, stock float64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO products (name, price, stock_quantity)
		VALUES ('Coffee', 5, $1)
		RETURNING id`, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

func testSalePayload(productID int64) *models.SalePayload {
	return &models.SalePayload{
		ExternalID:    uuid.NewString(),
		LocationID:    1,
		SoldAt:        time.Now().UTC(),
		Items:         []models.SaleItemPayload{{ProductID: productID, Quantity: 2, UnitPrice: 5, Subtotal: 10}},
		Subtotal:      10,
		TaxAmount:     1.5,
		TotalAmount:   11.5,
		PaymentMethod: models.PAYMENT_CASH,
	}
}

func countRows(t *testing.T, db *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func TestCreateSaleReplayIsDuplicate(t *testing.T) {
	db := openTestPool(t)
	ctx := context.Background()
	repo := NewSaleRepo(db)
	productID := seedTestProduct(t, db, 100)
	payload := testSalePayload(productID)

	first, err := repo.CreateSale(ctx, payload)
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)

	second, err := repo.CreateSale(ctx, payload)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Sale.ID, second.Sale.ID)
	assert.Equal(t, first.Sale.SaleNumber, second.Sale.SaleNumber)

	// The replay performed no writes.
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM sales`))
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM journal_entries WHERE source = 'sale' AND source_id = $1`, first.Sale.ID))

	var stock float64
	require.NoError(t, db.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock))
	assert.InDelta(t, 98, stock, 0.001, "stock decremented exactly once")
}

func TestCreateSaleInsertRaceResolvesAsDuplicate(t *testing.T) {
	db := openTestPool(t)
	ctx := context.Background()
	repo := NewSaleRepo(db)
	productID := seedTestProduct(t, db, 100)
	payload := testSalePayload(productID)

	// Another register commits the same external id after this repo's
	// duplicate lookup has already missed. The uncommitted row below is
	// invisible to the lookup but parks the repo's insert on the unique
	// index until the commit, which then surfaces as a 23505.
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	var racedID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (external_id, sale_number, location_id, sold_at,
		                   subtotal, discount_amount, tax_amount, total_amount, payment_method)
		VALUES ($1, 'SAL-20260831-9999', 1, $2, 10, 0, 1.5, 11.5, 'cash')
		RETURNING id`,
		payload.ExternalID, payload.SoldAt,
	).Scan(&racedID)
	require.NoError(t, err)

	done := make(chan struct{})
	var result *models.SaleIngestResult
	var createErr error
	go func() {
		defer close(done)
		result, createErr = repo.CreateSale(ctx, payload)
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, tx.Commit(ctx))
	<-done

	require.NoError(t, createErr, "a lost insert race is a duplicate, not an error")
	require.True(t, result.IsDuplicate)
	assert.Equal(t, racedID, result.Sale.ID)

	// The losing transaction rolled back completely.
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM sales WHERE external_id = $1`, payload.ExternalID))
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM journal_entries`))

	var stock float64
	require.NoError(t, db.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock))
	assert.InDelta(t, 100, stock, 0.001)
}

func TestCreateSaleMissingAccountRollsBack(t *testing.T) {
	db := openTestPool(t)
	ctx := context.Background()
	repo := NewSaleRepo(db)
	productID := seedTestProduct(t, db, 100)
	payload := testSalePayload(productID)

	_, err := db.Exec(ctx, `DELETE FROM accounts WHERE code = $1`, models.ACCOUNT_REVENUE)
	require.NoError(t, err)
	t.Cleanup(func() {
		// Bootstrap reseeds the chart of accounts for the tests after this one.
		require.NoError(t, Bootstrap(context.Background(), db))
	})

	result, err := repo.CreateSale(ctx, payload)
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Nil(t, result)

	// Nothing from the failed ingestion is left behind.
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM sales`))
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM journal_entries`))
	_, err = repo.GetSaleByExternalID(ctx, payload.ExternalID)
	assert.ErrorIs(t, err, ErrSaleNotFound)

	var stock float64
	require.NoError(t, db.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock))
	assert.InDelta(t, 100, stock, 0.001, "stock decrement rolled back with the sale")
}

func TestSaleNumbersAreSequentialPerDay(t *testing.T) {
	db := openTestPool(t)
	ctx := context.Background()
	repo := NewSaleRepo(db)
	productID := seedTestProduct(t, db, 100)

	prefix := fmt.Sprintf("SAL-%s-", time.Now().Format("20060102"))
	for i := 1; i <= 3; i++ {
		result, err := repo.CreateSale(ctx, testSalePayload(productID))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%s%04d", prefix, i), result.Sale.SaleNumber)
	}
}
