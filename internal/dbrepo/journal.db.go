package dbrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrAccountNotFound = errors.New("account not found")

type JournalRepo struct {
	db *pgxpool.Pool
}

func NewJournalRepo(db *pgxpool.Pool) *JournalRepo {
	return &JournalRepo{db: db}
}

// debitAccountFor maps the payment method to the asset account debited.
// Cash goes straight to the cash account; card, mobile money and bank
// transfers sit in receivable until the processor settles.
func debitAccountFor(paymentMethod string) string {
	if paymentMethod == models.PAYMENT_CASH {
		return models.ACCOUNT_CASH
	}
	return models.ACCOUNT_RECEIVABLE
}

// BuildSalePosting derives the balanced double-entry lines for a sale.
// Amounts are computed with decimals so debits always equal credits to the
// cent. Pure function, no database access.
func BuildSalePosting(sale *models.SaleDB) ([]models.JournalEntryLine, error) {
	total := decimal.NewFromFloat(sale.TotalAmount).Round(2)
	revenue := decimal.NewFromFloat(sale.Subtotal).
		Sub(decimal.NewFromFloat(sale.DiscountAmount)).
		Round(2)
	tax := decimal.NewFromFloat(sale.TaxAmount).Round(2)

	lines := []models.JournalEntryLine{
		{AccountCode: debitAccountFor(sale.PaymentMethod), DebitAmount: total.InexactFloat64()},
		{AccountCode: models.ACCOUNT_REVENUE, CreditAmount: revenue.InexactFloat64()},
	}
	if tax.IsPositive() {
		lines = append(lines, models.JournalEntryLine{
			AccountCode:  models.ACCOUNT_TAX_PAYABLE,
			CreditAmount: tax.InexactFloat64(),
		})
	}

	if !total.Equal(revenue.Add(tax)) {
		return nil, fmt.Errorf("unbalanced posting: debit %s vs credit %s", total, revenue.Add(tax))
	}
	return lines, nil
}

// PostSaleTx writes the journal entry and its lines inside the caller's
// transaction. A failure here fails the whole sale ingestion.
func PostSaleTx(ctx context.Context, tx pgx.Tx, sale *models.SaleDB) (int64, error) {
	lines, err := BuildSalePosting(sale)
	if err != nil {
		return 0, err
	}

	entryNumber, err := nextEntryNumberTx(ctx, tx)
	if err != nil {
		return 0, err
	}

	var journalID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries
			(entry_number, source, source_id, reference_no, entry_date, description, total_debit, total_credit)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		entryNumber,
		models.SOURCE_SALE,
		sale.ID,
		fmt.Sprintf("SALE-%d", sale.ID),
		sale.SoldAt,
		fmt.Sprintf("Sale %s", sale.SaleNumber),
		sale.TotalAmount,
		sale.TotalAmount,
	).Scan(&journalID)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry failed: %w", err)
	}

	for _, line := range lines {
		tag, err := tx.Exec(ctx, `
			INSERT INTO journal_entry_lines (journal_entry_id, account_id, debit_amount, credit_amount)
			SELECT $1, id, $3, $4 FROM accounts WHERE code = $2`,
			journalID, line.AccountCode, line.DebitAmount, line.CreditAmount,
		)
		if err != nil {
			return 0, fmt.Errorf("insert journal line %s failed: %w", line.AccountCode, err)
		}
		// The SELECT inserts nothing when the code is missing from the
		// chart of accounts; an entry without its lines must never commit.
		if tag.RowsAffected() != 1 {
			return 0, fmt.Errorf("account %s: %w", line.AccountCode, ErrAccountNotFound)
		}
	}

	return journalID, nil
}

// nextEntryNumberTx assigns the next JE-YYYYMMDD-NNNN sequence for today.
// Safe inside the ingestion tx: the unique constraint on entry_number
// catches a lost race and fails the tx, which the client simply retries.
func nextEntryNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	day := time.Now()
	prefix := fmt.Sprintf("JE-%s-", day.Format("20060102"))

	var seq int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(RIGHT(entry_number, 4) AS BIGINT)), 0)
		FROM journal_entries
		WHERE entry_number LIKE $1 || '%'`,
		prefix,
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("entry number sequence failed: %w", err)
	}
	return utils.EntryNumber(day, seq+1), nil
}

// ListBySource returns the journal entries (with lines) posted for a given
// source row, e.g. source='sale', source_id=<sale id>.
func (r *JournalRepo) ListBySource(ctx context.Context, source string, sourceID int64) ([]*models.JournalEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, entry_number, source, source_id, reference_no, entry_date,
		       description, total_debit, total_credit, created_at
		FROM journal_entries
		WHERE source = $1 AND ($2 = 0 OR source_id = $2)
		ORDER BY id`,
		source, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query failed: %w", err)
	}
	defer rows.Close()

	var entries []*models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(
			&e.ID, &e.EntryNumber, &e.Source, &e.SourceID, &e.ReferenceNo,
			&e.EntryDate, &e.Description, &e.TotalDebit, &e.TotalCredit, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("journal scan failed: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal rows failed: %w", err)
	}

	for _, e := range entries {
		lines, err := r.entryLines(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		e.Lines = lines
	}
	return entries, nil
}

func (r *JournalRepo) entryLines(ctx context.Context, entryID int64) ([]models.JournalEntryLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.journal_entry_id, a.code, l.debit_amount, l.credit_amount
		FROM journal_entry_lines l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.journal_entry_id = $1
		ORDER BY l.id`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("journal lines query failed: %w", err)
	}
	defer rows.Close()

	var lines []models.JournalEntryLine
	for rows.Next() {
		var l models.JournalEntryLine
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.AccountCode, &l.DebitAmount, &l.CreditAmount); err != nil {
			return nil, fmt.Errorf("journal line scan failed: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
