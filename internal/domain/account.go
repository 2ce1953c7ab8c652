package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStartingPoints is granted to every account at registration.
const DefaultStartingPoints int64 = 100

// Account is a marketplace member and the owner of a points balance.
type Account struct {
	ID            uuid.UUID    `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	PasswordHash  string       `json:"-"`
	PointsBalance int64        `json:"points_balance"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	Stats         AccountStats `json:"stats"`
}

func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// AccountStats are derived from the transactions and items tables on read.
// They are never written directly.
type AccountStats struct {
	TotalSwaps     int64 `json:"total_swaps"`
	CompletedSwaps int64 `json:"completed_swaps"`
	OngoingSwaps   int64 `json:"ongoing_swaps"`
	ItemsListed    int64 `json:"items_listed"`
}

type EntryKind string

const (
	EntrySignupGrant    EntryKind = "signup_grant"
	EntryPurchase       EntryKind = "purchase"
	EntryPointsExchange EntryKind = "points_exchange"
)

// LedgerEntry represents one leg of a double-entry points movement.
// The sum of Deltas for a given TransactionID must always equal 0.
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	Delta         int64      `json:"delta"`
	Kind          EntryKind  `json:"kind"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TransferEntries builds the debit and credit legs moving amount from one
// account to another.
func TransferEntries(txID uuid.UUID, from, to uuid.UUID, amount int64, kind EntryKind, at time.Time) []LedgerEntry {
	id := txID
	return []LedgerEntry{
		{ID: uuid.New(), AccountID: from, TransactionID: &id, Delta: -amount, Kind: kind, CreatedAt: at},
		{ID: uuid.New(), AccountID: to, TransactionID: &id, Delta: amount, Kind: kind, CreatedAt: at},
	}
}

// IdempotencyRecord binds a client-supplied key to the transaction it produced.
type IdempotencyRecord struct {
	Key           string
	AccountID     uuid.UUID
	RequestHash   string
	TransactionID uuid.UUID
	CreatedAt     time.Time
}
