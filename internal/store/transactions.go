package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

const transactionColumns = `id, sender_account_id, receiver_account_id, item_id, offered_item_id, method, points_amount,
	message, status, created_at, updated_at, completed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.SenderAccountID, &t.ReceiverAccountID, &t.ItemID, &t.OfferedItemID, &t.Method, &t.PointsAmount,
		&t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *Queries) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.SenderAccountID, t.ReceiverAccountID, t.ItemID, t.OfferedItemID, t.Method, t.PointsAmount,
		t.Message, t.Status, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		if isCode(err, codeUniqueViolation) && constraintName(err) == "transactions_one_active_per_item" {
			return fmt.Errorf("%w: item %s already has an active transaction", domain.ErrItemUnavailable, t.ItemID)
		}
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return t, nil
}

func (q *Queries) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return t, nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	tag, err := q.db.Exec(ctx,
		"UPDATE transactions SET status = $2, updated_at = $3, completed_at = $4 WHERE id = $1",
		t.ID, t.Status, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("transaction update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// ActiveTransactionForItem returns the live transaction holding an item, or
// an ErrNotFound error when there is none.
func (q *Queries) ActiveTransactionForItem(ctx context.Context, itemID uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRow(ctx,
		"SELECT "+transactionColumns+` FROM transactions
		 WHERE item_id = $1 AND status IN ('pending', 'accepted', 'disputed') FOR UPDATE`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("active transaction for item %s: %w", itemID, domain.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

// ListTransactions returns the transactions an account takes part in, newest first.
func (q *Queries) ListTransactions(ctx context.Context, accountID uuid.UUID, status domain.TxStatus) ([]domain.Transaction, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+transactionColumns+` FROM transactions
		 WHERE (sender_account_id = $1 OR receiver_account_id = $1) AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id`, accountID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
