package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/warung-pos/internal/domain/cancellation"
)

const (
	findCancellationSQL = `SELECT id, order_id, reason, cancelled_at FROM cancellations WHERE order_id = $1`

	listCancellationsSQL = `SELECT id, order_id, reason, cancelled_at FROM cancellations
		WHERE cancelled_at >= $1 AND cancelled_at < $2
		ORDER BY cancelled_at DESC`
)

var _ cancellation.Repository = (*CancellationRepository)(nil)

// CancellationRepository reads the cancellation ledger.
type CancellationRepository struct {
	pool *pgxpool.Pool
}

// NewCancellationRepository returns a CancellationRepository that uses the given pool.
func NewCancellationRepository(pool *pgxpool.Pool) *CancellationRepository {
	return &CancellationRepository{pool: pool}
}

func (r *CancellationRepository) FindByOrderID(ctx context.Context, orderID string) (*cancellation.Record, error) {
	rows, err := r.pool.Query(ctx, findCancellationSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding cancellation for %q: %w", orderID, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanCancellation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cancellation.ErrNotFound
		}
		return nil, fmt.Errorf("finding cancellation for %q: %w", orderID, err)
	}
	return &rec, nil
}

func (r *CancellationRepository) ListBetween(ctx context.Context, from, to time.Time) ([]cancellation.Record, error) {
	rows, err := r.pool.Query(ctx, listCancellationsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing cancellations: %w", err)
	}
	return pgx.CollectRows(rows, scanCancellation)
}

func scanCancellation(row pgx.CollectableRow) (cancellation.Record, error) {
	var rec cancellation.Record
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.Reason, &rec.CancelledAt)
	return rec, err
}
