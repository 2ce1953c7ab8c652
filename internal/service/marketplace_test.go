package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second per reading so newest-first orderings are
// deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	m     *Marketplace
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := memstore.New()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: st,
		m:     New(st, nil, WithClock(clock.Now)),
	}
}

func (f *fixture) account() *domain.Account {
	f.t.Helper()
	f.seq++
	a, err := f.m.Register(f.ctx, RegisterInput{
		Email:     fmt.Sprintf("member%d@example.com", f.seq),
		Password:  "password123",
		FirstName: "Member",
		LastName:  fmt.Sprint(f.seq),
	})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) item(owner uuid.UUID, points int64) *domain.Item {
	f.t.Helper()
	it, err := f.m.CreateItem(f.ctx, owner, ItemInput{
		Title:       "Denim jacket",
		Description: "Lightly worn, fits true to size",
		Category:    "outerwear",
		Type:        domain.ListingPoints,
		Size:        "m",
		Condition:   "good",
		Tags:        []string{"denim", "vintage"},
		PointsValue: points,
		Images:      []string{"https://cdn.example.com/a.jpg"},
	})
	require.NoError(f.t, err)
	return it
}

func (f *fixture) balance(id uuid.UUID) int64 {
	f.t.Helper()
	a, err := f.store.GetAccount(f.ctx, id)
	require.NoError(f.t, err)
	return a.PointsBalance
}

func (f *fixture) itemStatus(id uuid.UUID) domain.ItemStatus {
	f.t.Helper()
	it, err := f.store.GetItem(f.ctx, id)
	require.NoError(f.t, err)
	return it.Status
}

// ledgerSum is the balance implied by an account's entries.
func (f *fixture) ledgerSum(id uuid.UUID) int64 {
	f.t.Helper()
	entries, err := f.m.Entries(f.ctx, id)
	require.NoError(f.t, err)
	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	return sum
}

func isOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
