package service

import (
	"context"
	"slices"

	"github.com/punchamoorthee/swapledger/internal/domain"
)

// Browse lists available items from other members, newest first. It never
// mutates state.
func (m *Marketplace) Browse(ctx context.Context, f domain.BrowseFilter) ([]domain.Item, error) {
	fields := map[string]string{}
	if f.Category != "" && !slices.Contains(domain.Categories, f.Category) {
		fields["category"] = "unknown category"
	}
	if f.Size != "" && !slices.Contains(domain.Sizes, f.Size) {
		fields["size"] = "unknown size"
	}
	if f.Condition != "" && !slices.Contains(domain.Conditions, f.Condition) {
		fields["condition"] = "unknown condition"
	}
	if f.MinPoints != nil && *f.MinPoints < 0 {
		fields["min_points"] = "must not be negative"
	}
	if f.MinPoints != nil && f.MaxPoints != nil && *f.MinPoints > *f.MaxPoints {
		fields["max_points"] = "must not be less than min_points"
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}
	return m.uow.BrowseItems(ctx, f.Normalize())
}
