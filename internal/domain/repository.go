package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface used by the marketplace service.
// Lookups return an error wrapping ErrNotFound when the row is absent.
// Lock* methods take a row lock that is held until the surrounding unit of
// work ends; outside a unit of work they behave like plain reads.
type Repository interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindAccount reads the account row alone, leaving Stats zero. Units of
	// work use it so they never scan the transactions and items tables.
	FindAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	// LockAccounts locks the given accounts in ascending id order.
	LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*Account, error)
	// UpdateAccountNames writes first_name and last_name only.
	UpdateAccountNames(ctx context.Context, a *Account) error
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) error
	InsertLedgerEntries(ctx context.Context, entries ...LedgerEntry) error
	ListLedgerEntries(ctx context.Context, accountID uuid.UUID) ([]LedgerEntry, error)

	CreateItem(ctx context.Context, it *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	LockItem(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, it *Item) error
	BrowseItems(ctx context.Context, f BrowseFilter) ([]Item, error)
	ListOwnedItems(ctx context.Context, owner uuid.UUID, status ItemStatus) ([]Item, error)

	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	ActiveTransactionForItem(ctx context.Context, itemID uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, status TxStatus) ([]Transaction, error)

	CreateRating(ctx context.Context, r *Rating) error
	GetRating(ctx context.Context, id uuid.UUID) (*Rating, error)
	RatingExists(ctx context.Context, rater, rated uuid.UUID) (bool, error)
	ListRatings(ctx context.Context, rated uuid.UUID) ([]Rating, error)
	UpdateRating(ctx context.Context, r *Rating) error

	GetIdempotencyRecord(ctx context.Context, key string) (*IdempotencyRecord, error)
	SaveIdempotencyRecord(ctx context.Context, rec *IdempotencyRecord) error
}

// UnitOfWork runs fn atomically: every mutation made through the Repository
// passed to fn commits together or not at all. Implementations retry
// serialization conflicts and surface ErrConflict once attempts run out.
type UnitOfWork interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}
