package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestItem_CreateFetchRoundTrip(t *testing.T) {
	f := newFixture(t)
	owner := f.account()

	in := ItemInput{
		Title:       "Wool coat",
		Description: "Charcoal, double breasted",
		Category:    "outerwear",
		Type:        domain.ListingSwap,
		Size:        "l",
		Condition:   "excellent",
		Brand:       strPtr("Acme"),
		Color:       strPtr("charcoal"),
		Tags:        []string{"wool", "winter"},
		PointsValue: 45,
		Images:      []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"},
	}
	created, err := f.m.CreateItem(f.ctx, owner.ID, in)
	require.NoError(t, err)

	got, err := f.m.GetItem(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Description, got.Description)
	assert.Equal(t, in.Category, got.Category)
	assert.Equal(t, in.Type, got.Type)
	assert.Equal(t, in.Size, got.Size)
	assert.Equal(t, in.Condition, got.Condition)
	assert.Equal(t, in.Brand, got.Brand)
	assert.Equal(t, in.Color, got.Color)
	assert.Equal(t, in.Tags, got.Tags)
	assert.Equal(t, in.PointsValue, got.PointsValue)
	assert.Equal(t, in.Images, got.Images)
	assert.Equal(t, "https://cdn.example.com/1.jpg", got.PrimaryImage())
	assert.Equal(t, owner.ID, got.OwnerAccountID)
	assert.Equal(t, domain.ItemAvailable, got.Status)
}

func TestItem_CreateValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.account()

	_, err := f.m.CreateItem(f.ctx, owner.ID, ItemInput{Category: "hats", Size: "m", Condition: "good", PointsValue: -1})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "description")
	assert.Contains(t, verr.Fields, "category")
	assert.Contains(t, verr.Fields, "points_value")
	assert.NotContains(t, verr.Fields, "size")

	_, err = f.m.CreateItem(f.ctx, uuid.New(), ItemInput{
		Title: "x", Description: "y", Category: "tops", Size: "s", Condition: "new",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItem_Update(t *testing.T) {
	f := newFixture(t)
	owner, other := f.account(), f.account()
	it := f.item(owner.ID, 10)

	in := ItemInput{Title: "Renamed", Description: "New text", Category: "tops", Size: "s", Condition: "fair", PointsValue: 12}
	updated, err := f.m.UpdateItem(f.ctx, it.ID, owner.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, domain.ListingSwap, updated.Type)
	assert.Equal(t, int64(12), updated.PointsValue)

	_, err = f.m.UpdateItem(f.ctx, it.ID, other.ID, in)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.m.CreateSwap(f.ctx, other.ID, CreateSwapInput{ItemID: it.ID, Method: domain.MethodDonation})
	require.NoError(t, err)
	_, err = f.m.UpdateItem(f.ctx, it.ID, owner.ID, in)
	assert.ErrorIs(t, err, domain.ErrItemUnavailable)
}

func TestItem_Remove(t *testing.T) {
	f := newFixture(t)
	owner, other := f.account(), f.account()

	t.Run("available", func(t *testing.T) {
		it := f.item(owner.ID, 10)
		_, err := f.m.RemoveItem(f.ctx, it.ID, other.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		removed, err := f.m.RemoveItem(f.ctx, it.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemRemoved, removed.Status)

		_, err = f.m.RemoveItem(f.ctx, it.ID, owner.ID)
		assert.ErrorIs(t, err, domain.ErrItemUnavailable)
	})

	t.Run("pending cancels its transaction", func(t *testing.T) {
		it := f.item(owner.ID, 10)
		tx, err := f.m.CreateSwap(f.ctx, other.ID, CreateSwapInput{ItemID: it.ID, Method: domain.MethodDonation})
		require.NoError(t, err)

		_, err = f.m.RemoveItem(f.ctx, it.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemRemoved, f.itemStatus(it.ID))

		got, err := f.m.GetTransaction(f.ctx, tx.ID, other.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxCancelled, got.Status)
	})
}

func TestItem_ListMine(t *testing.T) {
	f := newFixture(t)
	owner, other := f.account(), f.account()
	first := f.item(owner.ID, 10)
	second := f.item(owner.ID, 20)
	f.item(other.ID, 30)
	_, err := f.m.RemoveItem(f.ctx, first.ID, owner.ID)
	require.NoError(t, err)

	all, err := f.m.ListMyItems(f.ctx, owner.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	available, err := f.m.ListMyItems(f.ctx, owner.ID, domain.ItemAvailable)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, second.ID, available[0].ID)

	_, err = f.m.ListMyItems(f.ctx, owner.ID, "lost")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBrowse(t *testing.T) {
	f := newFixture(t)
	me, seller := f.account(), f.account()

	f.item(me.ID, 10)
	cheap := f.item(seller.ID, 5)
	pricey := f.item(seller.ID, 90)
	shoes, err := f.m.CreateItem(f.ctx, seller.ID, ItemInput{
		Title: "Trail runners", Description: "Barely used", Category: "shoes", Size: "custom",
		Condition: "excellent", Brand: strPtr("Northpeak"), Tags: []string{"running"}, PointsValue: 40,
	})
	require.NoError(t, err)
	gone := f.item(seller.ID, 15)
	_, err = f.m.RemoveItem(f.ctx, gone.ID, seller.ID)
	require.NoError(t, err)

	ids := func(items []domain.Item) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}
	lo, hi := int64(10), int64(50)

	tests := []struct {
		name   string
		filter domain.BrowseFilter
		want   []uuid.UUID
	}{
		{"excludes own and unavailable, newest first", domain.BrowseFilter{ExcludeAccount: me.ID}, []uuid.UUID{shoes.ID, pricey.ID, cheap.ID}},
		{"category", domain.BrowseFilter{ExcludeAccount: me.ID, Category: "shoes"}, []uuid.UUID{shoes.ID}},
		{"points range", domain.BrowseFilter{ExcludeAccount: me.ID, MinPoints: &lo, MaxPoints: &hi}, []uuid.UUID{shoes.ID}},
		{"search brand", domain.BrowseFilter{ExcludeAccount: me.ID, Search: "northPEAK"}, []uuid.UUID{shoes.ID}},
		{"search tag", domain.BrowseFilter{ExcludeAccount: me.ID, Search: "vintage"}, []uuid.UUID{pricey.ID, cheap.ID}},
		{"paging", domain.BrowseFilter{ExcludeAccount: me.ID, Limit: 1, Offset: 1}, []uuid.UUID{pricey.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.m.Browse(f.ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}

	_, err = f.m.Browse(f.ctx, domain.BrowseFilter{MinPoints: &hi, MaxPoints: &lo, Category: "hats"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "max_points")
	assert.Contains(t, verr.Fields, "category")
}
