package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/warung-pos/internal/domain/customer"
)

const (
	getCustomerSQL = `SELECT id, handle, name, created_at FROM users
		WHERE id = $1 AND role = 'customer'`

	findCustomerByNameSQL = `SELECT id, handle, name, created_at FROM users
		WHERE role = 'customer' AND lower(name) = lower($1)
		ORDER BY created_at
		LIMIT 1`

	insertCustomerSQL = `INSERT INTO users (id, handle, name, role, created_at)
		VALUES ($1, $2, $3, 'customer', $4)`

	usersHandleKey = "users_handle_key"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository stores customers in the users table.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.one(ctx, getCustomerSQL, id)
}

func (r *CustomerRepository) FindByName(ctx context.Context, name string) (*customer.Customer, error) {
	return r.one(ctx, findCustomerByNameSQL, name)
}

func (r *CustomerRepository) one(ctx context.Context, sql string, arg string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&c.ID, &c.Handle, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", arg, err)
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	_, err := r.pool.Exec(ctx, insertCustomerSQL, c.ID, c.Handle, c.Name, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, usersHandleKey) {
			return customer.ErrHandleTaken
		}
		return fmt.Errorf("creating customer %q: %w", c.Handle, err)
	}
	return nil
}
