package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/swapledger/internal/domain"
)

const itemColumns = `id, owner_account_id, title, description, category, type, size, condition, brand, color,
	tags, points_value, images, status, created_at, updated_at`

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.OwnerAccountID, &it.Title, &it.Description, &it.Category, &it.Type, &it.Size, &it.Condition,
		&it.Brand, &it.Color, &it.Tags, &it.PointsValue, &it.Images, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]domain.Item, error) {
	defer rows.Close()
	items := []domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (q *Queries) CreateItem(ctx context.Context, it *domain.Item) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		it.ID, it.OwnerAccountID, it.Title, it.Description, it.Category, it.Type, it.Size, it.Condition,
		it.Brand, it.Color, it.Tags, it.PointsValue, it.Images, it.Status, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("item insert failed: %w", err)
	}
	return nil
}

func (q *Queries) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	it, err := scanItem(q.db.QueryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "item", id)
	}
	return it, nil
}

// LockItem reads the item under a row lock; a concurrent mover blocks here
// until the holder commits and then sees the new status.
func (q *Queries) LockItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	it, err := scanItem(q.db.QueryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "item", id)
	}
	return it, nil
}

func (q *Queries) UpdateItem(ctx context.Context, it *domain.Item) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE items SET owner_account_id = $2, title = $3, description = $4, category = $5, type = $6, size = $7,
		        condition = $8, brand = $9, color = $10, tags = $11, points_value = $12, images = $13, status = $14,
		        updated_at = $15
		 WHERE id = $1`,
		it.ID, it.OwnerAccountID, it.Title, it.Description, it.Category, it.Type, it.Size,
		it.Condition, it.Brand, it.Color, it.Tags, it.PointsValue, it.Images, it.Status, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("item update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", it.ID, domain.ErrNotFound)
	}
	return nil
}

// BrowseItems pushes every filter predicate down to SQL.
func (q *Queries) BrowseItems(ctx context.Context, f domain.BrowseFilter) ([]domain.Item, error) {
	f = f.Normalize()

	var (
		where = []string{"status = 'available'"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.ExcludeAccount != uuid.Nil {
		where = append(where, "owner_account_id <> "+arg(f.ExcludeAccount))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.Size != "" {
		where = append(where, "size = "+arg(f.Size))
	}
	if f.Condition != "" {
		where = append(where, "condition = "+arg(f.Condition))
	}
	if f.MinPoints != nil {
		where = append(where, "points_value >= "+arg(*f.MinPoints))
	}
	if f.MaxPoints != nil {
		where = append(where, "points_value <= "+arg(*f.MaxPoints))
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, fmt.Sprintf(
			"(title ILIKE %[1]s OR description ILIKE %[1]s OR coalesce(brand, '') ILIKE %[1]s OR array_to_string(tags, ',') ILIKE %[1]s)", p))
	}

	sql := "SELECT " + itemColumns + " FROM items WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("browse items: %w", err)
	}
	return collectItems(rows)
}

// ListOwnedItems returns an owner's items newest first; an empty status
// returns all of them.
func (q *Queries) ListOwnedItems(ctx context.Context, owner uuid.UUID, status domain.ItemStatus) ([]domain.Item, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+itemColumns+` FROM items
		 WHERE owner_account_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id`, owner, string(status))
	if err != nil {
		return nil, fmt.Errorf("list owned items: %w", err)
	}
	return collectItems(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
