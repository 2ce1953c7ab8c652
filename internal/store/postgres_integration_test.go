//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/service"
	"github.com/punchamoorthee/swapledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("swapledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := zap.NewNop()
	require.NoError(t, store.Migrate(dsn, log))
	// A second run finds nothing to apply.
	require.NoError(t, store.Migrate(dsn, log))

	// Default retry budget, so a spurious serialization failure shows up as ErrConflict.
	st, err := store.NewStore(ctx, dsn, store.Options{}, log)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func register(t *testing.T, m *service.Marketplace, n int) *domain.Account {
	t.Helper()
	a, err := m.Register(context.Background(), service.RegisterInput{
		Email:     fmt.Sprintf("member%d@example.com", n),
		Password:  "password123",
		FirstName: "Member",
		LastName:  fmt.Sprint(n),
	})
	require.NoError(t, err)
	return a
}

func listItem(t *testing.T, m *service.Marketplace, owner uuid.UUID, points int64) *domain.Item {
	t.Helper()
	it, err := m.CreateItem(context.Background(), owner, service.ItemInput{
		Title:       "Wool coat",
		Description: "Charcoal, knee length",
		Category:    "outerwear",
		Type:        domain.ListingPoints,
		Size:        "l",
		Condition:   "excellent",
		Tags:        []string{"wool", "winter"},
		PointsValue: points,
	})
	require.NoError(t, err)
	return it
}

func ledgerSum(t *testing.T, m *service.Marketplace, id uuid.UUID) int64 {
	t.Helper()
	entries, err := m.Entries(context.Background(), id)
	require.NoError(t, err)
	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	return sum
}

func TestIntegration_Postgres(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	m := service.New(st, zap.NewNop())

	t.Run("concurrent purchases have one winner", func(t *testing.T) {
		seller := register(t, m, 1)
		item := listItem(t, m, seller.ID, 40)

		const buyers = 8
		accounts := make([]*domain.Account, buyers)
		for i := range accounts {
			accounts[i] = register(t, m, 100+i)
		}

		results := make([]error, buyers)
		var g errgroup.Group
		for i, b := range accounts {
			g.Go(func() error {
				_, results[i] = m.Purchase(ctx, b.ID, service.PurchaseInput{
					ItemID: item.ID, Mode: service.PurchasePoints, PointsUsed: 40,
				})
				return nil
			})
		}
		require.NoError(t, g.Wait())

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrItemUnavailable)
		}
		assert.Equal(t, 1, wins)

		got, err := m.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemSold, got.Status)

		var total int64
		for _, a := range append(accounts, seller) {
			acct, err := st.GetAccount(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, acct.PointsBalance, ledgerSum(t, m, a.ID))
			total += acct.PointsBalance
		}
		assert.Equal(t, int64(100*(buyers+1)), total)
	})

	t.Run("concurrent requests for one item have one winner", func(t *testing.T) {
		owner := register(t, m, 20)
		item := listItem(t, m, owner.ID, 10)

		const senders = 8
		accounts := make([]*domain.Account, senders)
		for i := range accounts {
			accounts[i] = register(t, m, 200+i)
		}

		results := make([]error, senders)
		var g errgroup.Group
		for i, a := range accounts {
			g.Go(func() error {
				_, results[i] = m.CreateSwap(ctx, a.ID, service.CreateSwapInput{
					ItemID: item.ID, Method: domain.MethodDonation,
				})
				return nil
			})
		}
		require.NoError(t, g.Wait())

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrItemUnavailable)
		}
		assert.Equal(t, 1, wins)

		got, err := m.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemPending, got.Status)
	})

	t.Run("unrelated requests do not conflict", func(t *testing.T) {
		const pairs = 8
		type pair struct {
			sender *domain.Account
			item   *domain.Item
		}
		work := make([]pair, pairs)
		for i := range work {
			owner := register(t, m, 300+i)
			work[i] = pair{sender: register(t, m, 400+i), item: listItem(t, m, owner.ID, 10)}
		}

		var g errgroup.Group
		for _, p := range work {
			g.Go(func() error {
				_, err := m.CreateSwap(ctx, p.sender.ID, service.CreateSwapInput{
					ItemID: p.item.ID, Method: domain.MethodPoints, PointsAmount: 10,
				})
				return err
			})
		}
		require.NoError(t, g.Wait())
	})

	t.Run("emails are stored lowercase and unique", func(t *testing.T) {
		a, err := m.Register(ctx, service.RegisterInput{
			Email: "Mixed.Case@Example.com", Password: "password123", FirstName: "Mixed", LastName: "Case",
		})
		require.NoError(t, err)
		assert.Equal(t, "mixed.case@example.com", a.Email)

		got, err := m.Authenticate(ctx, "MIXED.CASE@example.COM", "password123")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		_, err = m.Register(ctx, service.RegisterInput{
			Email: "mixed.case@EXAMPLE.com", Password: "password123", FirstName: "Other", LastName: "Case",
		})
		assert.ErrorIs(t, err, domain.ErrEmailTaken)

		_, err = st.Db.Exec(ctx,
			`INSERT INTO accounts (id, email, first_name, last_name, password_hash) VALUES ($1, 'Upper@Example.com', 'U', 'P', 'x')`,
			uuid.New())
		assert.Error(t, err)
	})

	t.Run("idempotent replay", func(t *testing.T) {
		seller := register(t, m, 2)
		buyer := register(t, m, 3)
		item := listItem(t, m, seller.ID, 25)

		in := service.PurchaseInput{
			ItemID: item.ID, Mode: service.PurchasePoints, PointsUsed: 25,
			IdempotencyKey: "replay-1", RequestHash: "h1",
		}
		first, err := m.Purchase(ctx, buyer.ID, in)
		require.NoError(t, err)
		again, err := m.Purchase(ctx, buyer.ID, in)
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, first.Transaction.ID, again.Transaction.ID)

		acct, err := st.GetAccount(ctx, buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(75), acct.PointsBalance)

		in.RequestHash = "h2"
		_, err = m.Purchase(ctx, buyer.ID, in)
		assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)
	})

	t.Run("swap completion exchanges owners", func(t *testing.T) {
		alice := register(t, m, 4)
		bob := register(t, m, 5)
		coat := listItem(t, m, alice.ID, 10)
		boots := listItem(t, m, bob.ID, 10)

		tx, err := m.CreateSwap(ctx, bob.ID, service.CreateSwapInput{
			ItemID: coat.ID, Method: domain.MethodSwap, OfferedItemID: &boots.ID,
		})
		require.NoError(t, err)

		_, err = m.CreateSwap(ctx, register(t, m, 6).ID, service.CreateSwapInput{
			ItemID: coat.ID, Method: domain.MethodDonation,
		})
		assert.ErrorIs(t, err, domain.ErrItemUnavailable)

		_, err = m.Respond(ctx, tx.ID, alice.ID, domain.ActionAccept)
		require.NoError(t, err)
		done, err := m.Complete(ctx, tx.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxCompleted, done.Status)
		assert.NotNil(t, done.CompletedAt)

		gotCoat, err := m.GetItem(ctx, coat.ID)
		require.NoError(t, err)
		gotBoots, err := m.GetItem(ctx, boots.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, gotCoat.OwnerAccountID)
		assert.Equal(t, alice.ID, gotBoots.OwnerAccountID)
		assert.Equal(t, domain.ItemSwapped, gotCoat.Status)
		assert.Equal(t, domain.ItemSwapped, gotBoots.Status)
	})

	t.Run("browse and ratings", func(t *testing.T) {
		viewer := register(t, m, 7)
		seller := register(t, m, 8)
		listItem(t, m, seller.ID, 5)
		listItem(t, m, viewer.ID, 5)

		items, err := m.Browse(ctx, domain.BrowseFilter{Search: "wool", ExcludeAccount: viewer.ID})
		require.NoError(t, err)
		for _, it := range items {
			assert.NotEqual(t, viewer.ID, it.OwnerAccountID)
			assert.Equal(t, domain.ItemAvailable, it.Status)
		}
		assert.NotEmpty(t, items)

		_, err = m.SubmitRating(ctx, viewer.ID, seller.ID, service.RatingInput{Score: 4})
		require.NoError(t, err)
		_, err = m.SubmitRating(ctx, viewer.ID, seller.ID, service.RatingInput{Score: 5})
		assert.ErrorIs(t, err, domain.ErrDuplicateRating)

		summary, err := m.ListRatings(ctx, seller.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Count)
		assert.InDelta(t, 4.0, summary.AverageRating, 0.001)
	})
}
