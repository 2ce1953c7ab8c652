package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

const accountColumns = `a.id, a.email, a.first_name, a.last_name, a.password_hash, a.points_balance, a.is_active, a.created_at,
	s.total_swaps, s.completed_swaps, s.ongoing_swaps, s.items_listed`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.PointsBalance, &a.IsActive, &a.CreatedAt,
		&a.Stats.TotalSwaps, &a.Stats.CompletedSwaps, &a.Stats.OngoingSwaps, &a.Stats.ItemsListed)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *Queries) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO accounts (id, email, first_name, last_name, password_hash, points_balance, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.PointsBalance, a.IsActive, a.CreatedAt,
	)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return fmt.Errorf("%w: %s", domain.ErrEmailTaken, a.Email)
		}
		return fmt.Errorf("account insert failed: %w", err)
	}
	return nil
}

// GetAccount retrieves a single account with its derived counters.
func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts a JOIN account_stats s ON s.account_id = a.id WHERE a.id = $1", id))
	if err != nil {
		return nil, notFound(err, "account", id)
	}
	return a, nil
}

func (q *Queries) FindAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	err := q.db.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, password_hash, points_balance, is_active, created_at
		 FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.PointsBalance, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "account", id)
	}
	return &a, nil
}

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts a JOIN account_stats s ON s.account_id = a.id WHERE a.email = lower($1)", email))
	if err != nil {
		return nil, notFound(err, "account", email)
	}
	return a, nil
}

// LockAccounts acquires row locks in id order so that two transfers touching
// the same pair of accounts can never deadlock each other.
func (q *Queries) LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return bytes.Compare(ordered[i][:], ordered[j][:]) < 0 })

	out := make(map[uuid.UUID]*domain.Account, len(ordered))
	for _, id := range ordered {
		if _, seen := out[id]; seen {
			continue
		}
		var a domain.Account
		err := q.db.QueryRow(ctx,
			`SELECT id, email, first_name, last_name, password_hash, points_balance, is_active, created_at
			 FROM accounts WHERE id = $1 FOR UPDATE`, id,
		).Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.PointsBalance, &a.IsActive, &a.CreatedAt)
		if err != nil {
			return nil, notFound(err, "account", id)
		}
		out[id] = &a
	}
	return out, nil
}

func (q *Queries) UpdateAccountNames(ctx context.Context, a *domain.Account) error {
	tag, err := q.db.Exec(ctx, "UPDATE accounts SET first_name = $1, last_name = $2 WHERE id = $3", a.FirstName, a.LastName, a.ID)
	if err != nil {
		return fmt.Errorf("account update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", a.ID, domain.ErrNotFound)
	}
	return nil
}

func (q *Queries) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) error {
	tag, err := q.db.Exec(ctx, "UPDATE accounts SET points_balance = points_balance + $1 WHERE id = $2", delta, id)
	if err != nil {
		if isCode(err, codeCheckViolation) {
			return fmt.Errorf("account %s: %w", id, domain.ErrInsufficientFunds)
		}
		return fmt.Errorf("balance update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (q *Queries) InsertLedgerEntries(ctx context.Context, entries ...domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			"INSERT INTO ledger_entries (id, account_id, transaction_id, delta, kind, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			e.ID, e.AccountID, e.TransactionID, e.Delta, e.Kind, e.CreatedAt,
		)
	}
	if err := q.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ledger entry failed: %w", err)
	}
	return nil
}

// ListLedgerEntries returns an account's entries newest first.
func (q *Queries) ListLedgerEntries(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, account_id, transaction_id, delta, kind, created_at
		 FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TransactionID, &e.Delta, &e.Kind, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
