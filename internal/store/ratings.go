package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

const ratingColumns = "id, rater_account_id, rated_account_id, transaction_id, score, comment, created_at, updated_at"

func scanRating(row pgx.Row) (*domain.Rating, error) {
	var r domain.Rating
	var score int16
	err := row.Scan(&r.ID, &r.RaterAccountID, &r.RatedAccountID, &r.TransactionID, &score, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Score = int(score)
	return &r, nil
}

func (q *Queries) CreateRating(ctx context.Context, r *domain.Rating) error {
	_, err := q.db.Exec(ctx,
		"INSERT INTO ratings ("+ratingColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		r.ID, r.RaterAccountID, r.RatedAccountID, r.TransactionID, int16(r.Score), r.Comment, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return fmt.Errorf("%w: account already rated", domain.ErrDuplicateRating)
		}
		return fmt.Errorf("rating insert failed: %w", err)
	}
	return nil
}

func (q *Queries) GetRating(ctx context.Context, id uuid.UUID) (*domain.Rating, error) {
	r, err := scanRating(q.db.QueryRow(ctx, "SELECT "+ratingColumns+" FROM ratings WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "rating", id)
	}
	return r, nil
}

func (q *Queries) RatingExists(ctx context.Context, rater, rated uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM ratings WHERE rater_account_id = $1 AND rated_account_id = $2)", rater, rated,
	).Scan(&exists)
	return exists, err
}

// ListRatings returns the ratings an account received, newest first.
func (q *Queries) ListRatings(ctx context.Context, rated uuid.UUID) ([]domain.Rating, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+ratingColumns+" FROM ratings WHERE rated_account_id = $1 ORDER BY created_at DESC, id", rated)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	out := []domain.Rating{}
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateRating(ctx context.Context, r *domain.Rating) error {
	tag, err := q.db.Exec(ctx, "UPDATE ratings SET comment = $2, updated_at = $3 WHERE id = $1", r.ID, r.Comment, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("rating update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rating %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}
