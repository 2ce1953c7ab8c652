package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"go.uber.org/zap"
)

type CreateSwapInput struct {
	ItemID        uuid.UUID
	Method        domain.Method
	PointsAmount  int64
	OfferedItemID *uuid.UUID
	Message       *string
}

// CreateSwap opens a transaction on an available item and moves the item to
// pending in the same unit of work. When two requests race for the same item
// exactly one wins; the other sees ErrItemUnavailable.
func (m *Marketplace) CreateSwap(ctx context.Context, sender uuid.UUID, in CreateSwapInput) (*domain.Transaction, error) {
	if in.ItemID == uuid.Nil {
		return nil, domain.NewValidationError("item_id", "is required")
	}
	if err := domain.ValidateMethodParams(in.Method, in.PointsAmount, in.OfferedItemID); err != nil {
		return nil, err
	}
	if in.Method != domain.MethodSwap {
		in.OfferedItemID = nil
	}
	if in.OfferedItemID != nil && *in.OfferedItemID == in.ItemID {
		return nil, fmt.Errorf("%w: cannot offer the requested item in exchange for itself", domain.ErrInvalidMethodParams)
	}

	var out *domain.Transaction
	err := m.inTx(ctx, func(repo domain.Repository, cl *commitLog) error {
		ids := []uuid.UUID{in.ItemID}
		if in.OfferedItemID != nil {
			if _, err := repo.GetItem(ctx, *in.OfferedItemID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("%w: offered item does not exist", domain.ErrInvalidMethodParams)
				}
				return err
			}
			ids = append(ids, *in.OfferedItemID)
		}
		items, err := lockItems(ctx, repo, ids...)
		if err != nil {
			return err
		}

		it := items[in.ItemID]
		if it.OwnerAccountID == sender {
			return fmt.Errorf("%w: you cannot request your own item", domain.ErrSelfTransaction)
		}
		if it.Status != domain.ItemAvailable {
			return fmt.Errorf("%w: item %s is %s", domain.ErrItemUnavailable, it.ID, it.Status)
		}
		if in.OfferedItemID != nil {
			offered := items[*in.OfferedItemID]
			if offered.OwnerAccountID != sender {
				return fmt.Errorf("%w: offered item must be your own", domain.ErrInvalidMethodParams)
			}
			if offered.Status != domain.ItemAvailable {
				return fmt.Errorf("%w: offered item %s is %s", domain.ErrItemUnavailable, offered.ID, offered.Status)
			}
		}

		acct, err := repo.FindAccount(ctx, sender)
		if err != nil {
			return err
		}
		if !acct.IsActive {
			return fmt.Errorf("account %s is deactivated: %w", sender, domain.ErrForbidden)
		}

		now := m.clock()
		t := &domain.Transaction{
			ID:                uuid.New(),
			SenderAccountID:   sender,
			ReceiverAccountID: it.OwnerAccountID,
			ItemID:            it.ID,
			OfferedItemID:     in.OfferedItemID,
			Method:            in.Method,
			PointsAmount:      in.PointsAmount,
			Message:           in.Message,
			Status:            domain.TxPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := it.TransitionTo(domain.ItemPending, now); err != nil {
			return err
		}
		if err := repo.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if err := repo.UpdateItem(ctx, it); err != nil {
			return err
		}
		cl.tx(*t)
		cl.item(it.Status)
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("transaction created",
		zap.String("transaction_id", out.ID.String()),
		zap.String("item_id", out.ItemID.String()),
		zap.String("method", string(out.Method)),
	)
	return out, nil
}

// Act applies a participant action to a transaction and drives the item
// state machine and the ledger to match, all in one unit of work.
func (m *Marketplace) Act(ctx context.Context, id, actor uuid.UUID, action domain.Action) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := m.inTx(ctx, func(repo domain.Repository, cl *commitLog) error {
		t, err := repo.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		next, err := t.Next(action, actor)
		if err != nil {
			return err
		}

		ids := []uuid.UUID{t.ItemID}
		if t.OfferedItemID != nil {
			ids = append(ids, *t.OfferedItemID)
		}
		items, err := lockItems(ctx, repo, ids...)
		if err != nil {
			return err
		}
		it := items[t.ItemID]

		now := m.clock()
		if status, ok := t.ItemEffect(action); ok {
			if err := it.TransitionTo(status, now); err != nil {
				return err
			}
			cl.item(status)
		}

		switch {
		case action == domain.ActionAccept && t.Method == domain.MethodSwap:
			offered := items[*t.OfferedItemID]
			if offered.OwnerAccountID != t.SenderAccountID || offered.Status != domain.ItemAvailable {
				return fmt.Errorf("%w: offered item %s is no longer available", domain.ErrItemUnavailable, offered.ID)
			}
			// The offered item is claimed and exchanged in one step.
			if err := offered.TransitionTo(domain.ItemPending, now); err != nil {
				return err
			}
			if err := offered.TransitionTo(domain.ItemSwapped, now); err != nil {
				return err
			}
			if err := repo.UpdateItem(ctx, offered); err != nil {
				return err
			}
			cl.item(offered.Status)

		case action == domain.ActionComplete && t.Method == domain.MethodSwap:
			offered := items[*t.OfferedItemID]
			it.OwnerAccountID = t.SenderAccountID
			it.UpdatedAt = now
			offered.OwnerAccountID = t.ReceiverAccountID
			offered.UpdatedAt = now
			if err := repo.UpdateItem(ctx, offered); err != nil {
				return err
			}

		case action == domain.ActionComplete && t.Method == domain.MethodPoints:
			if err := transfer(ctx, repo, t.ID, t.SenderAccountID, t.ReceiverAccountID, t.PointsAmount, domain.EntryPointsExchange, now); err != nil {
				return err
			}
			cl.points += t.PointsAmount
		}

		if err := repo.UpdateItem(ctx, it); err != nil {
			return err
		}

		t.Status = next
		t.UpdatedAt = now
		if next == domain.TxCompleted {
			t.CompletedAt = &now
		}
		if err := repo.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		cl.tx(*t)
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("transaction updated",
		zap.String("transaction_id", out.ID.String()),
		zap.String("action", string(action)),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

// Respond is the receiver's accept or decline of a pending transaction.
func (m *Marketplace) Respond(ctx context.Context, id, actor uuid.UUID, action domain.Action) (*domain.Transaction, error) {
	if action != domain.ActionAccept && action != domain.ActionDecline {
		return nil, domain.NewValidationError("action", "must be accept or decline")
	}
	return m.Act(ctx, id, actor, action)
}

func (m *Marketplace) Complete(ctx context.Context, id, actor uuid.UUID) (*domain.Transaction, error) {
	return m.Act(ctx, id, actor, domain.ActionComplete)
}

func (m *Marketplace) Cancel(ctx context.Context, id, actor uuid.UUID) (*domain.Transaction, error) {
	return m.Act(ctx, id, actor, domain.ActionCancel)
}

func (m *Marketplace) Dispute(ctx context.Context, id, actor uuid.UUID) (*domain.Transaction, error) {
	return m.Act(ctx, id, actor, domain.ActionDispute)
}

// GetTransaction hides transactions from anyone who is not a party to them.
func (m *Marketplace) GetTransaction(ctx context.Context, id, actor uuid.UUID) (*domain.Transaction, error) {
	t, err := m.uow.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(actor) {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (m *Marketplace) ListTransactions(ctx context.Context, actor uuid.UUID, status domain.TxStatus) ([]domain.Transaction, error) {
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown transaction status %q", status))
	}
	return m.uow.ListTransactions(ctx, actor, status)
}
