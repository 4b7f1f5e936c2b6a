package models

import "time"

// JournalEntry is one balanced double-entry posting. Entries created by
// sale ingestion are tagged source='sale' with the sale's row id so the
// posting for any synced sale can be located and verified.
type JournalEntry struct {
	ID          int64              `json:"id"`
	EntryNumber string             `json:"entry_number"`
	Source      string             `json:"source"`
	SourceID    int64              `json:"source_id"`
	ReferenceNo string             `json:"reference_no"`
	EntryDate   time.Time          `json:"entry_date"`
	Description string             `json:"description"`
	TotalDebit  float64            `json:"total_debit"`
	TotalCredit float64            `json:"total_credit"`
	CreatedAt   time.Time          `json:"created_at"`
	Lines       []JournalEntryLine `json:"lines"`
}

type JournalEntryLine struct {
	ID             int64   `json:"id"`
	JournalEntryID int64   `json:"journal_entry_id"`
	AccountCode    string  `json:"account_code"`
	DebitAmount    float64 `json:"debit_amount"`
	CreditAmount   float64 `json:"credit_amount"`
}
