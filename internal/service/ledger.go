package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

// debit fails with ErrInsufficientFunds when the locked balance cannot cover
// amount. The account must already be locked by the caller's unit of work.
func debit(ctx context.Context, repo domain.Repository, acct *domain.Account, amount int64) error {
	if amount < 0 {
		return domain.NewValidationError("amount", "must not be negative")
	}
	if amount > acct.PointsBalance {
		return fmt.Errorf("%w: account %s holds %d points, %d required",
			domain.ErrInsufficientFunds, acct.ID, acct.PointsBalance, amount)
	}
	if err := repo.AdjustBalance(ctx, acct.ID, -amount); err != nil {
		return err
	}
	acct.PointsBalance -= amount
	return nil
}

func credit(ctx context.Context, repo domain.Repository, acct *domain.Account, amount int64) error {
	if amount < 0 {
		return domain.NewValidationError("amount", "must not be negative")
	}
	if err := repo.AdjustBalance(ctx, acct.ID, amount); err != nil {
		return err
	}
	acct.PointsBalance += amount
	return nil
}

// transfer moves amount between two accounts on behalf of a marketplace
// transaction. Both rows are locked in id order before either balance is read,
// and the debit, credit and both ledger legs land in the caller's unit of work.
func transfer(ctx context.Context, repo domain.Repository, txID, from, to uuid.UUID, amount int64, kind domain.EntryKind, at time.Time) error {
	if amount <= 0 {
		return domain.NewValidationError("amount", "must be greater than 0")
	}
	if from == to {
		return fmt.Errorf("%w: cannot transfer points to the same account", domain.ErrSelfTransaction)
	}

	accounts, err := repo.LockAccounts(ctx, from, to)
	if err != nil {
		return err
	}
	src, dst := accounts[from], accounts[to]
	if !dst.IsActive {
		return fmt.Errorf("account %s is deactivated: %w", to, domain.ErrForbidden)
	}

	if err := debit(ctx, repo, src, amount); err != nil {
		return err
	}
	if err := credit(ctx, repo, dst, amount); err != nil {
		return err
	}
	return repo.InsertLedgerEntries(ctx, domain.TransferEntries(txID, from, to, amount, kind, at)...)
}

// Entries returns the account's ledger history, newest first.
func (m *Marketplace) Entries(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	if _, err := m.uow.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return m.uow.ListLedgerEntries(ctx, accountID)
}
