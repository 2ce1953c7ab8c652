package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemPending   ItemStatus = "pending"
	ItemSwapped   ItemStatus = "swapped"
	ItemDonated   ItemStatus = "donated"
	ItemSold      ItemStatus = "sold"
	ItemRemoved   ItemStatus = "removed"
)

// itemTransitions lists every legal move out of a non-terminal status.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemAvailable: {ItemPending, ItemSold, ItemRemoved},
	ItemPending:   {ItemSwapped, ItemSold, ItemDonated, ItemAvailable, ItemRemoved},
}

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemAvailable, ItemPending, ItemSwapped, ItemDonated, ItemSold, ItemRemoved:
		return true
	}
	return false
}

// Terminal statuses are final.
func (s ItemStatus) Terminal() bool {
	return s.Valid() && itemTransitions[s] == nil
}

func (s ItemStatus) CanTransition(to ItemStatus) bool {
	for _, next := range itemTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ListingType is the owner's preferred way of parting with an item.
type ListingType string

const (
	ListingSwap     ListingType = "swap"
	ListingDonation ListingType = "donation"
	ListingPoints   ListingType = "points"
)

var (
	Categories = []string{"tops", "bottoms", "outerwear", "shoes", "accessories", "dresses", "activewear", "formal", "casual", "other"}
	Sizes      = []string{"xs", "s", "m", "l", "xl", "xxl", "one_size", "custom"}
	Conditions = []string{"new", "excellent", "good", "fair", "worn"}
)

type Item struct {
	ID             uuid.UUID   `json:"id"`
	OwnerAccountID uuid.UUID   `json:"owner_account_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	Type           ListingType `json:"type"`
	Size           string      `json:"size"`
	Condition      string      `json:"condition"`
	Brand          *string     `json:"brand,omitempty"`
	Color          *string     `json:"color,omitempty"`
	Tags           []string    `json:"tags"`
	PointsValue    int64       `json:"points_value"`
	Images         []string    `json:"images"`
	Status         ItemStatus  `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// PrimaryImage is the first uploaded image reference, if any.
func (i *Item) PrimaryImage() string {
	if len(i.Images) == 0 {
		return ""
	}
	return i.Images[0]
}

// TransitionTo moves the item to the given status or reports why it cannot.
func (i *Item) TransitionTo(to ItemStatus, at time.Time) error {
	if !i.Status.CanTransition(to) {
		return fmt.Errorf("%w: item %s is %s", ErrItemUnavailable, i.ID, i.Status)
	}
	i.Status = to
	i.UpdatedAt = at
	return nil
}

// NormalizeTags trims, lowercases and de-duplicates tags, dropping empties.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

const (
	DefaultBrowseLimit = 50
	MaxBrowseLimit     = 200
)

// BrowseFilter narrows the marketplace listing. Zero values mean "any".
type BrowseFilter struct {
	Category       string
	Size           string
	Condition      string
	MinPoints      *int64
	MaxPoints      *int64
	Search         string
	ExcludeAccount uuid.UUID
	Limit          int
	Offset         int
}

// Normalize clamps paging and trims the search term.
func (f BrowseFilter) Normalize() BrowseFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit <= 0 {
		f.Limit = DefaultBrowseLimit
	}
	if f.Limit > MaxBrowseLimit {
		f.Limit = MaxBrowseLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether an item satisfies the filter. Stores that cannot
// push the predicate down to the database use it directly.
func (f BrowseFilter) Matches(it *Item) bool {
	if it.Status != ItemAvailable {
		return false
	}
	if f.ExcludeAccount != uuid.Nil && it.OwnerAccountID == f.ExcludeAccount {
		return false
	}
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if f.Size != "" && it.Size != f.Size {
		return false
	}
	if f.Condition != "" && it.Condition != f.Condition {
		return false
	}
	if f.MinPoints != nil && it.PointsValue < *f.MinPoints {
		return false
	}
	if f.MaxPoints != nil && it.PointsValue > *f.MaxPoints {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hay := []string{it.Title, it.Description, strings.Join(it.Tags, ",")}
		if it.Brand != nil {
			hay = append(hay, *it.Brand)
		}
		found := false
		for _, h := range hay {
			if strings.Contains(strings.ToLower(h), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
