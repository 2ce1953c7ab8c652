package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PurchaseMode string

const (
	PurchasePoints   PurchaseMode = "points"
	PurchaseCurrency PurchaseMode = "currency"
)

type PurchaseInput struct {
	ItemID     uuid.UUID
	Mode       PurchaseMode
	PointsUsed int64
	// Amount is the currency price for PurchaseCurrency.
	Amount *decimal.Decimal
	// IdempotencyKey is optional. A repeated key with the same RequestHash
	// replays the original result instead of buying twice.
	IdempotencyKey string
	RequestHash    string
}

type PurchaseResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Item        *domain.Item        `json:"item"`
	Replayed    bool                `json:"-"`
}

// Purchase buys an item outright with points. The debit, the credit, the
// completed transaction and the sold item commit as a single unit.
func (m *Marketplace) Purchase(ctx context.Context, buyer uuid.UUID, in PurchaseInput) (*PurchaseResult, error) {
	switch in.Mode {
	case PurchasePoints:
	case PurchaseCurrency:
		if in.Amount == nil || !in.Amount.IsPositive() {
			return nil, domain.NewValidationError("amount", "must be greater than 0 for currency purchases")
		}
		return nil, fmt.Errorf("%w: currency purchase of %s is not available", domain.ErrUnimplemented, in.Amount.StringFixed(2))
	default:
		return nil, domain.NewValidationError("mode", "must be points or currency")
	}
	if in.PointsUsed <= 0 {
		return nil, domain.NewValidationError("points_used", "must be greater than 0")
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	var res *PurchaseResult
	err := m.inTx(ctx, func(repo domain.Repository, cl *commitLog) error {
		if key != "" {
			replay, err := replayPurchase(ctx, repo, key, buyer, in.RequestHash)
			if err != nil {
				return err
			}
			if replay != nil {
				res = replay
				return nil
			}
		}

		it, err := repo.LockItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if it.OwnerAccountID == buyer {
			return fmt.Errorf("%w: you cannot purchase your own item", domain.ErrSelfTransaction)
		}
		if it.Status != domain.ItemAvailable {
			return fmt.Errorf("%w: item %s is %s", domain.ErrItemUnavailable, it.ID, it.Status)
		}
		if in.PointsUsed < it.PointsValue {
			return fmt.Errorf("%w: item costs %d points, %d offered", domain.ErrInvalidMethodParams, it.PointsValue, in.PointsUsed)
		}

		now := m.clock()
		t := &domain.Transaction{
			ID:                uuid.New(),
			SenderAccountID:   buyer,
			ReceiverAccountID: it.OwnerAccountID,
			ItemID:            it.ID,
			Method:            domain.MethodPoints,
			PointsAmount:      in.PointsUsed,
			Status:            domain.TxCompleted,
			CreatedAt:         now,
			UpdatedAt:         now,
			CompletedAt:       &now,
		}
		if err := repo.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if err := transfer(ctx, repo, t.ID, buyer, it.OwnerAccountID, in.PointsUsed, domain.EntryPurchase, now); err != nil {
			return err
		}
		if err := it.TransitionTo(domain.ItemSold, now); err != nil {
			return err
		}
		if err := repo.UpdateItem(ctx, it); err != nil {
			return err
		}
		if key != "" {
			err := repo.SaveIdempotencyRecord(ctx, &domain.IdempotencyRecord{
				Key:           key,
				AccountID:     buyer,
				RequestHash:   in.RequestHash,
				TransactionID: t.ID,
				CreatedAt:     now,
			})
			if err != nil {
				return err
			}
		}

		cl.tx(*t)
		cl.item(it.Status)
		cl.points += in.PointsUsed
		res = &PurchaseResult{Transaction: t, Item: it}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Replayed {
		m.log.Debug("purchase replayed", zap.String("idempotency_key", key))
	} else {
		m.log.Info("item purchased",
			zap.String("transaction_id", res.Transaction.ID.String()),
			zap.String("item_id", res.Item.ID.String()),
			zap.Int64("points", in.PointsUsed),
		)
	}
	return res, nil
}

// replayPurchase returns the stored outcome for a known key, or nil when the
// key has not been seen.
func replayPurchase(ctx context.Context, repo domain.Repository, key string, buyer uuid.UUID, hash string) (*PurchaseResult, error) {
	rec, err := repo.GetIdempotencyRecord(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.AccountID != buyer || rec.RequestHash != hash {
		return nil, domain.ErrIdempotencyMismatch
	}

	t, err := repo.GetTransaction(ctx, rec.TransactionID)
	if err != nil {
		return nil, err
	}
	it, err := repo.GetItem(ctx, t.ItemID)
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Transaction: t, Item: it, Replayed: true}, nil
}
