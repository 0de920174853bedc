package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/menu"
)

const (
	upsertStaffSQL = `INSERT INTO users (id, handle, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, deleted_at = NULL`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, user_id, key_hash, name, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, key_hash = EXCLUDED.key_hash,
			name = EXCLUDED.name, active = TRUE`
)

// Staff is a seeded non-customer user with one API key.
type Staff struct {
	ID      string
	Handle  string
	Name    string
	Role    auth.Role
	KeyID   string
	KeyHash string
}

// Seeder writes idempotent fixture data.
type Seeder struct {
	pool  *pgxpool.Pool
	items *MenuRepository
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool, items: NewMenuRepository(pool)}
}

// UpsertMenuItem inserts it or refreshes the stored copy.
func (s *Seeder) UpsertMenuItem(ctx context.Context, it *menu.Item) error {
	return s.items.Upsert(ctx, it)
}

// UpsertStaff writes the user and its key in one transaction.
func (s *Seeder) UpsertStaff(ctx context.Context, st Staff) error {
	if st.Role == auth.RoleCustomer {
		return fmt.Errorf("staff %q: customers cannot hold api keys", st.ID)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertStaffSQL, st.ID, st.Handle, st.Name, string(st.Role)); err != nil {
			return fmt.Errorf("upserting user: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertAPIKeySQL, st.KeyID, st.ID, st.KeyHash, st.Name+" key"); err != nil {
			return fmt.Errorf("upserting api key: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seeding staff %q: %w", st.ID, err)
	}
	return nil
}
