// Package memstore is an in-process domain.UnitOfWork. Units of work run one
// at a time against a private copy of the data that replaces the committed
// copy only when the unit succeeds, so it honours the same atomicity contract
// as the PostgreSQL store. It backs tests and DB_SOURCE=memory local runs.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

type state struct {
	accounts map[uuid.UUID]domain.Account
	items    map[uuid.UUID]domain.Item
	txs      map[uuid.UUID]domain.Transaction
	ratings  map[uuid.UUID]domain.Rating
	entries  []domain.LedgerEntry
	idem     map[string]domain.IdempotencyRecord
}

func newState() *state {
	return &state{
		accounts: map[uuid.UUID]domain.Account{},
		items:    map[uuid.UUID]domain.Item{},
		txs:      map[uuid.UUID]domain.Transaction{},
		ratings:  map[uuid.UUID]domain.Rating{},
		idem:     map[string]domain.IdempotencyRecord{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.items {
		c.items[k] = cloneItem(v)
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.ratings {
		c.ratings[k] = v
	}
	c.entries = append([]domain.LedgerEntry(nil), s.entries...)
	for k, v := range s.idem {
		c.idem[k] = v
	}
	return c
}

func cloneItem(it domain.Item) domain.Item {
	it.Tags = append([]string{}, it.Tags...)
	it.Images = append([]string{}, it.Images...)
	return it
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Store is safe for concurrent use.
type Store struct {
	*view
	mu   sync.Mutex
	txMu sync.Mutex
}

var _ domain.UnitOfWork = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.view = &view{st: newState(), mu: &s.mu}
	return s
}

// InTx serializes units of work. fn sees a private snapshot; it is published
// only if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(domain.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(&view{st: snapshot, mu: noopLocker{}}); err != nil {
		return err
	}
	// A unit cancelled before commit leaves nothing behind.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	*s.st = *snapshot
	s.mu.Unlock()
	return nil
}

type view struct {
	st *state
	mu sync.Locker
}

var _ domain.Repository = (*view)(nil)

func (v *view) CreateAccount(_ context.Context, a *domain.Account) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, existing := range v.st.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return fmt.Errorf("%w: %s", domain.ErrEmailTaken, a.Email)
		}
	}
	stored := *a
	stored.Stats = domain.AccountStats{}
	v.st.accounts[a.ID] = stored
	return nil
}

func (v *view) withStats(a domain.Account) *domain.Account {
	var s domain.AccountStats
	for _, t := range v.st.txs {
		if !t.IsParticipant(a.ID) {
			continue
		}
		s.TotalSwaps++
		if t.Status == domain.TxCompleted {
			s.CompletedSwaps++
		}
		if t.Status.Active() {
			s.OngoingSwaps++
		}
	}
	for _, it := range v.st.items {
		if it.OwnerAccountID == a.ID && it.Status != domain.ItemRemoved {
			s.ItemsListed++
		}
	}
	a.Stats = s
	return &a
}

func (v *view) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.st.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return v.withStats(a), nil
}

func (v *view) FindAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.st.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (v *view) UpdateAccountNames(_ context.Context, a *domain.Account) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	stored, ok := v.st.accounts[a.ID]
	if !ok {
		return fmt.Errorf("account %s: %w", a.ID, domain.ErrNotFound)
	}
	stored.FirstName, stored.LastName = a.FirstName, a.LastName
	v.st.accounts[a.ID] = stored
	return nil
}

func (v *view) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, a := range v.st.accounts {
		if strings.EqualFold(a.Email, email) {
			return v.withStats(a), nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
}

func (v *view) LockAccounts(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range ids {
		a, ok := v.st.accounts[id]
		if !ok {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
		out[id] = &a
	}
	return out, nil
}

func (v *view) AdjustBalance(_ context.Context, id uuid.UUID, delta int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.st.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if a.PointsBalance+delta < 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrInsufficientFunds)
	}
	a.PointsBalance += delta
	v.st.accounts[id] = a
	return nil
}

func (v *view) InsertLedgerEntries(_ context.Context, entries ...domain.LedgerEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.st.entries = append(v.st.entries, entries...)
	return nil
}

func (v *view) ListLedgerEntries(_ context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []domain.LedgerEntry{}
	for _, e := range v.st.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (v *view) CreateItem(_ context.Context, it *domain.Item) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.st.accounts[it.OwnerAccountID]; !ok {
		return fmt.Errorf("item owner %s: %w", it.OwnerAccountID, domain.ErrNotFound)
	}
	v.st.items[it.ID] = cloneItem(*it)
	return nil
}

func (v *view) GetItem(_ context.Context, id uuid.UUID) (*domain.Item, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	it, ok := v.st.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	c := cloneItem(it)
	return &c, nil
}

func (v *view) LockItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	return v.GetItem(ctx, id)
}

func (v *view) UpdateItem(_ context.Context, it *domain.Item) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.st.items[it.ID]; !ok {
		return fmt.Errorf("item %s: %w", it.ID, domain.ErrNotFound)
	}
	v.st.items[it.ID] = cloneItem(*it)
	return nil
}

func (v *view) BrowseItems(_ context.Context, f domain.BrowseFilter) ([]domain.Item, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	f = f.Normalize()
	matched := []domain.Item{}
	for _, it := range v.st.items {
		if f.Matches(&it) {
			matched = append(matched, cloneItem(it))
		}
	}
	sortItems(matched)
	if f.Offset >= len(matched) {
		return []domain.Item{}, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (v *view) ListOwnedItems(_ context.Context, owner uuid.UUID, status domain.ItemStatus) ([]domain.Item, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []domain.Item{}
	for _, it := range v.st.items {
		if it.OwnerAccountID == owner && (status == "" || it.Status == status) {
			out = append(out, cloneItem(it))
		}
	}
	sortItems(out)
	return out, nil
}

func (v *view) CreateTransaction(_ context.Context, t *domain.Transaction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.Status.Active() {
		for _, existing := range v.st.txs {
			if existing.ItemID == t.ItemID && existing.Status.Active() {
				return fmt.Errorf("%w: item %s already has an active transaction", domain.ErrItemUnavailable, t.ItemID)
			}
		}
	}
	v.st.txs[t.ID] = *t
	return nil
}

func (v *view) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.st.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return &t, nil
}

func (v *view) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return v.GetTransaction(ctx, id)
}

func (v *view) UpdateTransaction(_ context.Context, t *domain.Transaction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	existing, ok := v.st.txs[t.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrNotFound)
	}
	existing.Status = t.Status
	existing.UpdatedAt = t.UpdatedAt
	existing.CompletedAt = t.CompletedAt
	v.st.txs[t.ID] = existing
	return nil
}

func (v *view) ActiveTransactionForItem(_ context.Context, itemID uuid.UUID) (*domain.Transaction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.st.txs {
		if t.ItemID == itemID && t.Status.Active() {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("active transaction for item %s: %w", itemID, domain.ErrNotFound)
}

func (v *view) ListTransactions(_ context.Context, accountID uuid.UUID, status domain.TxStatus) ([]domain.Transaction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []domain.Transaction{}
	for _, t := range v.st.txs {
		if t.IsParticipant(accountID) && (status == "" || t.Status == status) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (v *view) CreateRating(_ context.Context, r *domain.Rating) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, existing := range v.st.ratings {
		if existing.RaterAccountID == r.RaterAccountID && existing.RatedAccountID == r.RatedAccountID {
			return fmt.Errorf("%w: account already rated", domain.ErrDuplicateRating)
		}
	}
	v.st.ratings[r.ID] = *r
	return nil
}

func (v *view) GetRating(_ context.Context, id uuid.UUID) (*domain.Rating, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.st.ratings[id]
	if !ok {
		return nil, fmt.Errorf("rating %s: %w", id, domain.ErrNotFound)
	}
	return &r, nil
}

func (v *view) RatingExists(_ context.Context, rater, rated uuid.UUID) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.st.ratings {
		if r.RaterAccountID == rater && r.RatedAccountID == rated {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) ListRatings(_ context.Context, rated uuid.UUID) ([]domain.Rating, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []domain.Rating{}
	for _, r := range v.st.ratings {
		if r.RatedAccountID == rated {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (v *view) UpdateRating(_ context.Context, r *domain.Rating) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	existing, ok := v.st.ratings[r.ID]
	if !ok {
		return fmt.Errorf("rating %s: %w", r.ID, domain.ErrNotFound)
	}
	existing.Comment = r.Comment
	existing.UpdatedAt = r.UpdatedAt
	v.st.ratings[r.ID] = existing
	return nil
}

func (v *view) GetIdempotencyRecord(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.st.idem[key]
	if !ok {
		return nil, fmt.Errorf("idempotency key: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

func (v *view) SaveIdempotencyRecord(_ context.Context, rec *domain.IdempotencyRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.st.idem[rec.Key]; ok {
		return fmt.Errorf("%w: idempotency key in use", domain.ErrConflict)
	}
	v.st.idem[rec.Key] = *rec
	return nil
}

func sortItems(items []domain.Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return lessID(items[i].ID, items[j].ID)
	})
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
