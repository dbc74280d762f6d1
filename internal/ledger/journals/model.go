// Package journals gives the ledger core read access to the journal produced
// elsewhere in the system. Nothing in this package writes.
package journals

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus enumerates journal entry lifecycle values. Only POSTED entries
// count toward balances.
type EntryStatus string

const (
	StatusDraft  EntryStatus = "DRAFT"
	StatusPosted EntryStatus = "POSTED"
	StatusVoid   EntryStatus = "VOID"
)

// Entry captures posting metadata for a journal entry.
type Entry struct {
	ID             uuid.UUID
	Reference      string
	Status         EntryStatus
	PostingDate    time.Time
	FiscalYear     int
	FiscalPeriod   int
	OrganisationID uuid.UUID
	BranchID       uuid.UUID
	CreatedAt      time.Time
}

// Line is one posting against one account. Debit and credit are both present
// on the wire; posted lines carry a non-zero amount on exactly one side.
type Line struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	AccountID   uuid.UUID
	Debit       float64
	Credit      float64
	Description string
}

// Totals aggregates posted debit and credit amounts for one account.
type Totals struct {
	Debit  float64
	Credit float64
}

// AccountActivity is the grouped aggregation row feeding the trial balance.
type AccountActivity struct {
	AccountID uuid.UUID
	Debit     float64
	Credit    float64
}
