package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"go.uber.org/zap"
)

// ItemInput carries the owner-editable attributes of a listing.
type ItemInput struct {
	Title       string
	Description string
	Category    string
	Type        domain.ListingType
	Size        string
	Condition   string
	Brand       *string
	Color       *string
	Tags        []string
	PointsValue int64
	Images      []string
}

func (in ItemInput) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "is required"
	}
	if !slices.Contains(domain.Categories, in.Category) {
		fields["category"] = "must be one of " + strings.Join(domain.Categories, ", ")
	}
	if !slices.Contains(domain.Sizes, in.Size) {
		fields["size"] = "must be one of " + strings.Join(domain.Sizes, ", ")
	}
	if !slices.Contains(domain.Conditions, in.Condition) {
		fields["condition"] = "must be one of " + strings.Join(domain.Conditions, ", ")
	}
	switch in.Type {
	case "", domain.ListingSwap, domain.ListingDonation, domain.ListingPoints:
	default:
		fields["type"] = "must be one of swap, donation, points"
	}
	if in.PointsValue < 0 {
		fields["points_value"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (in ItemInput) apply(it *domain.Item) {
	it.Title = strings.TrimSpace(in.Title)
	it.Description = strings.TrimSpace(in.Description)
	it.Category = in.Category
	it.Type = in.Type
	if it.Type == "" {
		it.Type = domain.ListingSwap
	}
	it.Size = in.Size
	it.Condition = in.Condition
	it.Brand = in.Brand
	it.Color = in.Color
	it.Tags = domain.NormalizeTags(in.Tags)
	it.PointsValue = in.PointsValue
	it.Images = append([]string{}, in.Images...)
}

func (m *Marketplace) CreateItem(ctx context.Context, owner uuid.UUID, in ItemInput) (*domain.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := m.clock()
	it := &domain.Item{
		ID:             uuid.New(),
		OwnerAccountID: owner,
		Status:         domain.ItemAvailable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	in.apply(it)

	err := m.inTx(ctx, func(repo domain.Repository, cl *commitLog) error {
		acct, err := repo.FindAccount(ctx, owner)
		if err != nil {
			return err
		}
		if !acct.IsActive {
			return fmt.Errorf("account %s is deactivated: %w", owner, domain.ErrForbidden)
		}
		if err := repo.CreateItem(ctx, it); err != nil {
			return err
		}
		cl.item(it.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (m *Marketplace) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	return m.uow.GetItem(ctx, id)
}

// UpdateItem edits descriptive fields. Only the owner may edit, and only while
// nothing is in flight against the item.
func (m *Marketplace) UpdateItem(ctx context.Context, id, actor uuid.UUID, in ItemInput) (*domain.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *domain.Item
	err := m.inTx(ctx, func(repo domain.Repository, _ *commitLog) error {
		it, err := repo.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if it.OwnerAccountID != actor {
			return fmt.Errorf("%w: only the owner can edit item %s", domain.ErrForbidden, id)
		}
		if it.Status != domain.ItemAvailable {
			return fmt.Errorf("%w: item %s is %s", domain.ErrItemUnavailable, id, it.Status)
		}
		in.apply(it)
		it.UpdatedAt = m.clock()
		if err := repo.UpdateItem(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem withdraws a listing. A pending item's live transaction is
// cancelled in the same unit of work.
func (m *Marketplace) RemoveItem(ctx context.Context, id, actor uuid.UUID) (*domain.Item, error) {
	var out *domain.Item
	err := m.inTx(ctx, func(repo domain.Repository, cl *commitLog) error {
		// Transactions are locked before items everywhere.
		active, err := repo.ActiveTransactionForItem(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		it, err := repo.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if it.OwnerAccountID != actor {
			return fmt.Errorf("%w: only the owner can remove item %s", domain.ErrForbidden, id)
		}

		now := m.clock()
		if active != nil {
			if active.Status != domain.TxPending {
				return fmt.Errorf("%w: item %s has an %s transaction", domain.ErrInvalidState, id, active.Status)
			}
			active.Status = domain.TxCancelled
			active.UpdatedAt = now
			if err := repo.UpdateTransaction(ctx, active); err != nil {
				return err
			}
			cl.tx(*active)
		}

		if err := it.TransitionTo(domain.ItemRemoved, now); err != nil {
			return err
		}
		if err := repo.UpdateItem(ctx, it); err != nil {
			return err
		}
		cl.item(it.Status)
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("item removed", zap.String("item_id", id.String()), zap.String("owner", actor.String()))
	return out, nil
}

// ListMyItems returns the owner's items, optionally narrowed to one status.
func (m *Marketplace) ListMyItems(ctx context.Context, owner uuid.UUID, status domain.ItemStatus) ([]domain.Item, error) {
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown item status %q", status))
	}
	return m.uow.ListOwnedItems(ctx, owner, status)
}

// lockItems locks items in ascending id order and returns them keyed by id.
func lockItems(ctx context.Context, repo domain.Repository, ids ...uuid.UUID) (map[uuid.UUID]*domain.Item, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

	out := make(map[uuid.UUID]*domain.Item, len(sorted))
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		it, err := repo.LockItem(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = it
	}
	return out, nil
}
