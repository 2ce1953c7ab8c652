package service

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebitCredit(t *testing.T) {
	f := newFixture(t)
	a := f.account()

	err := f.store.InTx(f.ctx, func(repo domain.Repository) error {
		accts, err := repo.LockAccounts(f.ctx, a.ID)
		require.NoError(t, err)
		acct := accts[a.ID]

		require.NoError(t, credit(f.ctx, repo, acct, 5))
		assert.Equal(t, int64(105), acct.PointsBalance)

		err = debit(f.ctx, repo, acct, 106)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		require.NoError(t, debit(f.ctx, repo, acct, 105))
		assert.Zero(t, acct.PointsBalance)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, f.balance(a.ID))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	a, b := f.account(), f.account()
	it := f.item(b.ID, 0)

	// Ledger legs reference a transaction row.
	run := func(amount int64, from, to uuid.UUID) error {
		txID := uuid.New()
		return f.store.InTx(f.ctx, func(repo domain.Repository) error {
			if err := repo.CreateTransaction(f.ctx, &domain.Transaction{
				ID: txID, SenderAccountID: from, ReceiverAccountID: to, ItemID: it.ID,
				Method: domain.MethodPoints, PointsAmount: 1, Status: domain.TxCancelled,
			}); err != nil {
				return err
			}
			return transfer(f.ctx, repo, txID, from, to, amount, domain.EntryPointsExchange, f.m.clock())
		})
	}

	require.NoError(t, run(40, a.ID, b.ID))
	assert.Equal(t, int64(60), f.balance(a.ID))
	assert.Equal(t, int64(140), f.balance(b.ID))

	t.Run("insufficient funds leaves nothing behind", func(t *testing.T) {
		err := run(61, a.ID, b.ID)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Equal(t, int64(60), f.balance(a.ID))
		assert.Equal(t, int64(140), f.balance(b.ID))
	})

	t.Run("self transfer", func(t *testing.T) {
		assert.ErrorIs(t, run(1, a.ID, a.ID), domain.ErrSelfTransaction)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		var verr *domain.ValidationError
		assert.ErrorAs(t, run(0, a.ID, b.ID), &verr)
	})

	t.Run("unknown account", func(t *testing.T) {
		assert.ErrorIs(t, run(1, a.ID, uuid.New()), domain.ErrNotFound)
	})

	assert.Equal(t, f.balance(a.ID), f.ledgerSum(a.ID))
	assert.Equal(t, f.balance(b.ID), f.ledgerSum(b.ID))
}

// Random purchases among a few members never create or destroy points and
// never drive a balance negative.
func TestConservationAcrossPurchases(t *testing.T) {
	f := newFixture(t)
	accounts := []*domain.Account{f.account(), f.account(), f.account(), f.account()}
	rng := rand.New(rand.NewPCG(7, 11))

	total := func() int64 {
		var sum int64
		for _, a := range accounts {
			sum += f.balance(a.ID)
		}
		return sum
	}
	start := total()

	for i := 0; i < 40; i++ {
		seller := accounts[rng.IntN(len(accounts))]
		buyer := accounts[rng.IntN(len(accounts))]
		price := int64(rng.IntN(80))
		it := f.item(seller.ID, price)

		_, err := f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{
			ItemID:     it.ID,
			Mode:       PurchasePoints,
			PointsUsed: price + int64(rng.IntN(20)) + 1,
		})
		if err != nil {
			assert.True(t,
				isOneOf(err, domain.ErrSelfTransaction, domain.ErrInsufficientFunds),
				"unexpected error: %v", err)
			assert.Equal(t, domain.ItemAvailable, f.itemStatus(it.ID))
		}

		assert.Equal(t, start, total())
		for _, a := range accounts {
			bal := f.balance(a.ID)
			assert.GreaterOrEqual(t, bal, int64(0))
			assert.Equal(t, bal, f.ledgerSum(a.ID))
		}
	}
}
