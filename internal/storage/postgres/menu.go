package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/warung-pos/internal/domain/menu"
)

const (
	menuColumns = `id, name, category, price, description, available`

	listMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR available)
		ORDER BY category, name`

	getMenuItemSQL = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = $1`

	getMenuItemsSQL = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = ANY($1)`

	insertMenuItemSQL = `INSERT INTO menu_items (id, name, category, price, description, available)
		VALUES ($1, $2, $3, $4, $5, $6)`

	upsertMenuItemSQL = insertMenuItemSQL + `
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category,
			price = EXCLUDED.price, description = EXCLUDED.description, updated_at = now()`

	updateMenuItemSQL = `UPDATE menu_items
		SET name = $2, category = $3, price = $4, description = $5, available = $6, updated_at = now()
		WHERE id = $1`

	setAvailabilitySQL = `UPDATE menu_items SET available = $2, updated_at = now() WHERE id = $1`

	deleteMenuItemSQL = `DELETE FROM menu_items WHERE id = $1`

	orderLinesMenuItemKey = "order_lines_menu_item_id_fkey"
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

func (r *MenuRepository) List(ctx context.Context, f menu.Filter) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, listMenuSQL, string(f.Category), f.OnlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("listing menu: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &it, nil
}

func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

func (r *MenuRepository) Create(ctx context.Context, it *menu.Item) error {
	_, err := r.pool.Exec(ctx, insertMenuItemSQL,
		it.ID, it.Name, string(it.Category), it.Price, it.Description, it.Available)
	if err != nil {
		return fmt.Errorf("creating menu item %q: %w", it.ID, err)
	}
	return nil
}

// Upsert inserts or refreshes an item by id, keeping its availability.
func (r *MenuRepository) Upsert(ctx context.Context, it *menu.Item) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL,
		it.ID, it.Name, string(it.Category), it.Price, it.Description, it.Available)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", it.ID, err)
	}
	return nil
}

func (r *MenuRepository) Update(ctx context.Context, it *menu.Item) error {
	tag, err := r.pool.Exec(ctx, updateMenuItemSQL,
		it.ID, it.Name, string(it.Category), it.Price, it.Description, it.Available)
	if err != nil {
		return fmt.Errorf("updating menu item %q: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func (r *MenuRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := r.pool.Exec(ctx, setAvailabilitySQL, id, available)
	if err != nil {
		return fmt.Errorf("setting availability of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func (r *MenuRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteMenuItemSQL, id)
	if err != nil {
		if isForeignKeyViolation(err, orderLinesMenuItemKey) {
			return menu.ErrInUse
		}
		return fmt.Errorf("deleting menu item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var (
		it       menu.Item
		category string
	)
	err := row.Scan(&it.ID, &it.Name, &category, &it.Price, &it.Description, &it.Available)
	it.Category = menu.Category(category)
	return it, err
}
