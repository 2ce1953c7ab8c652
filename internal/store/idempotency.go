package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

func (q *Queries) GetIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := q.db.QueryRow(ctx,
		"SELECT key, account_id, request_hash, transaction_id, created_at FROM idempotency_keys WHERE key = $1", key,
	).Scan(&rec.Key, &rec.AccountID, &rec.RequestHash, &rec.TransactionID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("idempotency key: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	return &rec, nil
}

func (q *Queries) SaveIdempotencyRecord(ctx context.Context, rec *domain.IdempotencyRecord) error {
	_, err := q.db.Exec(ctx,
		"INSERT INTO idempotency_keys (key, account_id, request_hash, transaction_id, created_at) VALUES ($1, $2, $3, $4, $5)",
		rec.Key, rec.AccountID, rec.RequestHash, rec.TransactionID, rec.CreatedAt,
	)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return fmt.Errorf("%w: idempotency key in use", domain.ErrConflict)
		}
		return fmt.Errorf("key reservation failed: %w", err)
	}
	return nil
}
