package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/warung-pos/internal/domain/order"
	"github.com/xenking/warung-pos/internal/domain/report"
)

const (
	orderFactsSQL = `SELECT o.id, o.customer_id, o.customer_name, o.status, o.total, o.created_at,
			COALESCE(p.method, ''), COALESCE(p.status, '')
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		WHERE o.created_at >= $1 AND o.created_at < $2
		ORDER BY o.created_at`

	lineFactsSQL = `SELECT l.order_id, o.status, l.menu_item_id, l.name, COALESCE(m.category, ''),
			l.quantity, l.unit_price, o.created_at
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		LEFT JOIN menu_items m ON m.id = l.menu_item_id
		WHERE o.created_at >= $1 AND o.created_at < $2
		ORDER BY o.created_at, l.line_no`

	cancellationFactsSQL = `SELECT c.order_id, c.reason, o.total, c.cancelled_at
		FROM cancellations c
		JOIN orders o ON o.id = c.order_id
		WHERE c.cancelled_at >= $1 AND c.cancelled_at < $2
		ORDER BY c.cancelled_at`
)

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository loads reporting facts with plain range queries; all
// aggregation happens in the report package.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) Orders(ctx context.Context, from, to time.Time) ([]report.OrderFact, error) {
	rows, err := r.pool.Query(ctx, orderFactsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading order facts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.OrderFact, error) {
		var (
			f                      report.OrderFact
			status, method, pstate string
		)
		err := row.Scan(&f.OrderID, &f.CustomerID, &f.CustomerName, &status, &f.Total, &f.CreatedAt, &method, &pstate)
		f.Status = order.Status(status)
		f.Method = order.Method(method)
		f.PaymentStatus = order.PaymentStatus(pstate)
		return f, err
	})
}

func (r *ReportRepository) Lines(ctx context.Context, from, to time.Time) ([]report.LineFact, error) {
	rows, err := r.pool.Query(ctx, lineFactsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading line facts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.LineFact, error) {
		var (
			f      report.LineFact
			status string
		)
		err := row.Scan(&f.OrderID, &status, &f.MenuItemID, &f.Name, &f.Category, &f.Quantity, &f.UnitPrice, &f.CreatedAt)
		f.OrderStatus = order.Status(status)
		return f, err
	})
}

func (r *ReportRepository) Cancellations(ctx context.Context, from, to time.Time) ([]report.CancellationFact, error) {
	rows, err := r.pool.Query(ctx, cancellationFactsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading cancellation facts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.CancellationFact, error) {
		var f report.CancellationFact
		err := row.Scan(&f.OrderID, &f.Reason, &f.OrderTotal, &f.CancelledAt)
		return f, err
	})
}
