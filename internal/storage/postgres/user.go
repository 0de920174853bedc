package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/staff"
)

const (
	staffColumns = `id, handle, name, role, created_at`

	activeStaff = `role <> 'customer' AND deleted_at IS NULL`

	listStaffSQL = `SELECT ` + staffColumns + ` FROM users
		WHERE ` + activeStaff + `
			AND ($1 = '' OR strpos(lower(name), lower($1)) > 0 OR strpos(handle, lower($1)) > 0)
		ORDER BY name, id`

	getStaffSQL = `SELECT ` + staffColumns + ` FROM users WHERE id = $1 AND ` + activeStaff

	insertStaffSQL = `INSERT INTO users (id, handle, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	updateStaffSQL = `UPDATE users SET handle = $2, name = $3, role = $4
		WHERE id = $1 AND ` + activeStaff

	deleteStaffSQL = `UPDATE users SET deleted_at = now() WHERE id = $1 AND ` + activeStaff

	deactivateKeysSQL = `UPDATE api_keys SET active = FALSE WHERE user_id = $1`

	insertKeySQL = `INSERT INTO api_keys (id, user_id, key_hash, name, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listKeysSQL = `SELECT id, user_id, name, active, created_at FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at, id`

	revokeKeySQL = `UPDATE api_keys SET active = FALSE WHERE id = $1 AND user_id = $2`
)

var _ staff.Repository = (*UserRepository)(nil)

// UserRepository stores staff accounts and their API keys in the users and
// api_keys tables. Deleted users are kept with deleted_at set because orders
// and payments reference them.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) List(ctx context.Context, query string) ([]staff.User, error) {
	rows, err := r.pool.Query(ctx, listStaffSQL, query)
	if err != nil {
		return nil, fmt.Errorf("listing staff: %w", err)
	}
	return pgx.CollectRows(rows, scanStaff)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*staff.User, error) {
	rows, err := r.pool.Query(ctx, getStaffSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting staff %q: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanStaff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, staff.ErrNotFound
		}
		return nil, fmt.Errorf("getting staff %q: %w", id, err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *staff.User) error {
	_, err := r.pool.Exec(ctx, insertStaffSQL, u.ID, u.Handle, u.Name, string(u.Role), u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, usersHandleKey) {
			return staff.ErrHandleTaken
		}
		return fmt.Errorf("creating staff %q: %w", u.Handle, err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *staff.User) error {
	tag, err := r.pool.Exec(ctx, updateStaffSQL, u.ID, u.Handle, u.Name, string(u.Role))
	if err != nil {
		if isUniqueViolation(err, usersHandleKey) {
			return staff.ErrHandleTaken
		}
		return fmt.Errorf("updating staff %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return staff.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteStaffSQL, id)
		if err != nil {
			return fmt.Errorf("deleting staff %q: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return staff.ErrNotFound
		}
		if _, err := tx.Exec(ctx, deactivateKeysSQL, id); err != nil {
			return fmt.Errorf("deactivating keys of %q: %w", id, err)
		}
		return nil
	})
}

func (r *UserRepository) CreateKey(ctx context.Context, k *staff.Key, hash string) error {
	_, err := r.pool.Exec(ctx, insertKeySQL, k.ID, k.UserID, hash, k.Name, k.Active, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating api key for %q: %w", k.UserID, err)
	}
	return nil
}

func (r *UserRepository) ListKeys(ctx context.Context, userID string) ([]staff.Key, error) {
	rows, err := r.pool.Query(ctx, listKeysSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (staff.Key, error) {
		var k staff.Key
		err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Active, &k.CreatedAt)
		return k, err
	})
}

func (r *UserRepository) RevokeKey(ctx context.Context, userID, keyID string) error {
	tag, err := r.pool.Exec(ctx, revokeKeySQL, keyID, userID)
	if err != nil {
		return fmt.Errorf("revoking api key %q: %w", keyID, err)
	}
	if tag.RowsAffected() == 0 {
		return staff.ErrKeyNotFound
	}
	return nil
}

func scanStaff(row pgx.CollectableRow) (staff.User, error) {
	var (
		u    staff.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Handle, &u.Name, &role, &u.CreatedAt); err != nil {
		return u, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return u, fmt.Errorf("user %q: %w", u.ID, err)
	}
	u.Role = r
	return u, nil
}
