package repository

import (
	"context"
	"fmt"
	"strings"

	"campusmarket/internal/model"
)

const itemColumns = `
	id, title, description, price, condition, status, category, location,
	is_negotiable, item_url, seller_id, created_by, updated_by, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (model.Item, error) {
	var item model.Item
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Price,
		&item.Condition,
		&item.Status,
		&item.Category,
		&item.Location,
		&item.IsNegotiable,
		&item.ItemURL,
		&item.SellerID,
		&item.CreatedBy,
		&item.UpdatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *Store) CreateItem(ctx context.Context, item model.Item) (model.Item, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO items (title, description, price, condition, status, category, location, is_negotiable, item_url, seller_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, item.Title, item.Description, item.Price, item.Condition, item.Status, item.Category, item.Location, item.IsNegotiable, item.ItemURL, item.SellerID, item.CreatedBy)
	err := row.Scan(&item.ID, &item.CreatedAt)
	return item, err
}

func (s *Store) GetItemByID(ctx context.Context, id int64) (model.Item, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = $1
	`, id)
	return scanItem(row)
}

// ItemFilter narrows the public listing. Zero values mean "no constraint";
// Status defaults to available and removed items are never returned.
type ItemFilter struct {
	Category  model.ItemCategory
	Condition model.ItemCondition
	Status    model.ItemStatus
	SellerID  *int64
	MinPrice  *float64
	MaxPrice  *float64
	Search    string
	Limit     int64
	Offset    int64
}

func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error) {
	conditions := []string{"status <> 'removed'"}
	args := []any{}

	status := filter.Status
	if status == "" {
		status = model.StatusAvailable
	}
	args = append(args, status)
	conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Condition != "" {
		args = append(args, filter.Condition)
		conditions = append(conditions, fmt.Sprintf("condition = $%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clause := fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
		conditions = append(conditions, clause)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT `+itemColumns+`
		FROM items
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conditions, " AND "), len(args)-1, len(args))

	return s.queryItems(ctx, query, args...)
}

func (s *Store) ListItemsBySeller(ctx context.Context, sellerID int64) ([]model.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE seller_id = $1 AND status <> 'removed'
		ORDER BY created_at DESC
	`, sellerID)
}

// ListAllItems is the moderation view: every item, removed ones included.
func (s *Store) ListAllItems(ctx context.Context, limit, offset int64) ([]model.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemUpdate applies the nil-able fields, keeping current values where the
// caller passes nil.
type ItemUpdate struct {
	Title        *string
	Description  *string
	Price        *float64
	Condition    *model.ItemCondition
	Category     *model.ItemCategory
	Location     *string
	IsNegotiable *bool
	ItemURL      *string
}

func (s *Store) UpdateItem(ctx context.Context, id int64, update ItemUpdate, updatedBy string) (model.Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE items
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description),
		    price = COALESCE($3, price),
		    condition = COALESCE($4, condition),
		    category = COALESCE($5, category),
		    location = COALESCE($6, location),
		    is_negotiable = COALESCE($7, is_negotiable),
		    item_url = COALESCE($8, item_url),
		    updated_by = $9,
		    updated_at = now()
		WHERE id = $10
		RETURNING `+itemColumns+`
	`, update.Title, update.Description, update.Price, update.Condition, update.Category, update.Location, update.IsNegotiable, update.ItemURL, updatedBy, id)
	return scanItem(row)
}

func (s *Store) UpdateItemStatus(ctx context.Context, id int64, status model.ItemStatus, updatedBy string) (model.Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE items
		SET status = $1, updated_by = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+itemColumns+`
	`, status, updatedBy, id)
	return scanItem(row)
}
