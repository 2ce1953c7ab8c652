package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchase_Succeeds(t *testing.T) {
	f := newFixture(t)
	buyer, seller := f.account(), f.account()
	it := f.item(seller.ID, 30)

	res, err := f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 30})
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	assert.Equal(t, int64(70), f.balance(buyer.ID))
	assert.Equal(t, int64(130), f.balance(seller.ID))
	assert.Equal(t, domain.ItemSold, f.itemStatus(it.ID))
	assert.Equal(t, domain.ItemSold, res.Item.Status)

	tx := res.Transaction
	assert.Equal(t, domain.TxCompleted, tx.Status)
	assert.Equal(t, domain.MethodPoints, tx.Method)
	assert.Equal(t, int64(30), tx.PointsAmount)
	assert.Equal(t, buyer.ID, tx.SenderAccountID)
	assert.Equal(t, seller.ID, tx.ReceiverAccountID)
	require.NotNil(t, tx.CompletedAt)

	entries, err := f.m.Entries(f.ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-30), entries[0].Delta)
	assert.Equal(t, domain.EntryPurchase, entries[0].Kind)
	require.NotNil(t, entries[0].TransactionID)
	assert.Equal(t, tx.ID, *entries[0].TransactionID)

	assert.Equal(t, f.balance(buyer.ID), f.ledgerSum(buyer.ID))
	assert.Equal(t, f.balance(seller.ID), f.ledgerSum(seller.ID))

	_, err = f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 30})
	assert.ErrorIs(t, err, domain.ErrItemUnavailable)
}

func TestPurchase_InsufficientFundsMutatesNothing(t *testing.T) {
	f := newFixture(t)
	buyer, seller := f.account(), f.account()
	it := f.item(seller.ID, 30)

	_, err := f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 150})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, int64(100), f.balance(buyer.ID))
	assert.Equal(t, int64(100), f.balance(seller.ID))
	assert.Equal(t, domain.ItemAvailable, f.itemStatus(it.ID))

	txs, err := f.m.ListTransactions(f.ctx, buyer.ID, "")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestPurchase_Rejections(t *testing.T) {
	f := newFixture(t)
	buyer, seller := f.account(), f.account()
	it := f.item(seller.ID, 30)
	price := decimal.RequireFromString("12.5")

	tests := []struct {
		name   string
		actor  uuid.UUID
		in     PurchaseInput
		target error
	}{
		{"currency", buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchaseCurrency, Amount: &price}, domain.ErrUnimplemented},
		{"own item", seller.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 30}, domain.ErrSelfTransaction},
		{"below price", buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 29}, domain.ErrInvalidMethodParams},
		{"unknown item", buyer.ID, PurchaseInput{ItemID: uuid.New(), Mode: PurchasePoints, PointsUsed: 1}, domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.m.Purchase(f.ctx, tc.actor, tc.in)
			assert.ErrorIs(t, err, tc.target)
		})
	}

	_, err := f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchaseCurrency, Amount: &price})
	assert.ErrorContains(t, err, "12.50")

	var verr *domain.ValidationError
	_, err = f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchaseCurrency})
	assert.ErrorAs(t, err, &verr)
	_, err = f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints})
	assert.ErrorAs(t, err, &verr)
	_, err = f.m.Purchase(f.ctx, buyer.ID, PurchaseInput{ItemID: it.ID, Mode: "barter", PointsUsed: 30})
	assert.ErrorAs(t, err, &verr)

	// A pending item is not for sale.
	_, err = f.m.CreateSwap(f.ctx, buyer.ID, CreateSwapInput{ItemID: it.ID, Method: domain.MethodDonation})
	require.NoError(t, err)
	other := f.account()
	_, err = f.m.Purchase(f.ctx, other.ID, PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 30})
	assert.ErrorIs(t, err, domain.ErrItemUnavailable)
}

func TestPurchase_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	buyer, seller := f.account(), f.account()
	it := f.item(seller.ID, 30)

	in := PurchaseInput{ItemID: it.ID, Mode: PurchasePoints, PointsUsed: 30, IdempotencyKey: "k-1", RequestHash: "h-1"}
	first, err := f.m.Purchase(f.ctx, buyer.ID, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := f.m.Purchase(f.ctx, buyer.ID, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
	assert.Equal(t, int64(70), f.balance(buyer.ID))

	in.RequestHash = "h-2"
	_, err = f.m.Purchase(f.ctx, buyer.ID, in)
	assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)

	other := f.account()
	in.RequestHash = "h-1"
	_, err = f.m.Purchase(f.ctx, other.ID, in)
	assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)
}
