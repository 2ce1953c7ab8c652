package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

type RatingInput struct {
	TransactionID *uuid.UUID
	Score         int
	Comment       *string
}

// SubmitRating records rater's opinion of rated. Each rater may rate a given
// account once. A referenced transaction must be completed and involve both.
func (m *Marketplace) SubmitRating(ctx context.Context, rater, rated uuid.UUID, in RatingInput) (*domain.Rating, error) {
	if err := domain.ValidateScore(in.Score); err != nil {
		return nil, err
	}
	if rater == rated {
		return nil, fmt.Errorf("%w: you cannot rate yourself", domain.ErrSelfRating)
	}

	now := m.clock()
	r := &domain.Rating{
		ID:             uuid.New(),
		RaterAccountID: rater,
		RatedAccountID: rated,
		TransactionID:  in.TransactionID,
		Score:          in.Score,
		Comment:        in.Comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := m.inTx(ctx, func(repo domain.Repository, _ *commitLog) error {
		if _, err := repo.FindAccount(ctx, rated); err != nil {
			return err
		}
		if in.TransactionID != nil {
			t, err := repo.GetTransaction(ctx, *in.TransactionID)
			if err != nil {
				return err
			}
			if !t.IsParticipant(rater) || !t.IsParticipant(rated) {
				return fmt.Errorf("%w: transaction %s is not between these accounts", domain.ErrForbidden, t.ID)
			}
			if t.Status != domain.TxCompleted {
				return fmt.Errorf("%w: transaction %s is %s, not completed", domain.ErrInvalidState, t.ID, t.Status)
			}
		}

		exists, err := repo.RatingExists(ctx, rater, rated)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: you have already rated this user", domain.ErrDuplicateRating)
		}
		return repo.CreateRating(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

type RatingSummary struct {
	Count         int             `json:"count"`
	AverageRating float64         `json:"average_rating"`
	Results       []domain.Rating `json:"results"`
}

func (m *Marketplace) ListRatings(ctx context.Context, rated uuid.UUID) (*RatingSummary, error) {
	if _, err := m.uow.GetAccount(ctx, rated); err != nil {
		return nil, err
	}
	ratings, err := m.uow.ListRatings(ctx, rated)
	if err != nil {
		return nil, err
	}
	return &RatingSummary{
		Count:         len(ratings),
		AverageRating: domain.AverageScore(ratings),
		Results:       ratings,
	}, nil
}

// UpdateRatingComment lets a rater edit their comment. Scores are fixed.
func (m *Marketplace) UpdateRatingComment(ctx context.Context, id, actor uuid.UUID, comment *string) (*domain.Rating, error) {
	var out *domain.Rating
	err := m.inTx(ctx, func(repo domain.Repository, _ *commitLog) error {
		r, err := repo.GetRating(ctx, id)
		if err != nil {
			return err
		}
		if r.RaterAccountID != actor {
			return fmt.Errorf("%w: only the author can edit a rating", domain.ErrForbidden)
		}
		r.Comment = comment
		r.UpdatedAt = m.clock()
		if err := repo.UpdateRating(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
