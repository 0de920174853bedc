package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, customer_id, customer_name, note, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, line_no, menu_item_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectOrderSQL = `SELECT o.id, o.customer_id, o.customer_name, o.note, o.status, o.total, o.created_at, o.updated_at,
			p.id, p.method, p.amount, p.status, p.cashier_id, p.created_at, p.paid_at,
			r.id, r.method, r.amount, r.status, r.printed_at,
			c.id, c.reason, c.cancelled_at
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		LEFT JOIN receipts r ON r.order_id = o.id
		LEFT JOIN cancellations c ON c.order_id = o.id`

	getOrderSQL = selectOrderSQL + ` WHERE o.id = $1`

	getOrderByReceiptSQL = selectOrderSQL + ` WHERE r.id = $1`

	listAwaitingCashSQL = selectOrderSQL + `
		WHERE o.status = 'awaiting_payment' AND p.method = 'cash' AND p.status = 'awaiting_confirmation'
		ORDER BY o.created_at`

	linesForOrdersSQL = `SELECT order_id, menu_item_id, name, quantity, unit_price
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, method, amount, status, cashier_id, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`

	insertReceiptSQL = `INSERT INTO receipts (id, order_id, method, amount, status, printed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	confirmPaymentSQL = `UPDATE payments SET status = $2, cashier_id = $3, paid_at = $4
		WHERE id = $1 AND status = 'awaiting_confirmation'`

	updateReceiptStatusSQL = `UPDATE receipts SET status = $2 WHERE id = $1`

	insertCancellationSQL = `INSERT INTO cancellations (id, order_id, reason, cancelled_at)
		VALUES ($1, $2, $3, $4)`

	cancellationsOrderKey = "cancellations_order_id_key"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository persists the order aggregate across orders, order_lines,
// payments, receipts and cancellations.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.CustomerID, o.CustomerName, o.Note, string(o.Status), o.Total, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, l := range o.Lines {
			batch.Queue(insertOrderLineSQL, o.ID, i+1, l.MenuItemID, l.Name, l.Quantity, l.UnitPrice)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderSQL, id)
}

func (r *OrderRepository) GetByReceiptID(ctx context.Context, receiptID string) (*order.Order, error) {
	return r.one(ctx, getOrderByReceiptSQL, receiptID)
}

func (r *OrderRepository) one(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}

	orders := []order.Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListAwaitingCash(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAwaitingCashSQL)
	if err != nil {
		return nil, fmt.Errorf("listing awaiting cash orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing awaiting cash orders: %w", err)
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, linesForOrdersSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.MenuItemID, &l.Name, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	return nil
}

func (r *OrderRepository) SavePayment(ctx context.Context, o *order.Order, from order.Status) error {
	if o.Payment == nil || o.Receipt == nil {
		return errors.New("order has no payment to save")
	}
	p, rc := o.Payment, o.Receipt

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := guardStatus(ctx, tx, o, from); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertPaymentSQL,
			p.ID, o.ID, string(p.Method), p.Amount, string(p.Status), p.CashierID, p.CreatedAt, p.PaidAt,
		); err != nil {
			if isUniqueViolation(err, "") {
				return order.ErrConcurrentUpdate
			}
			return fmt.Errorf("inserting payment: %w", err)
		}
		if _, err := tx.Exec(ctx, insertReceiptSQL,
			rc.ID, o.ID, string(rc.Method), rc.Amount, string(rc.Status), rc.PrintedAt,
		); err != nil {
			return fmt.Errorf("inserting receipt: %w", err)
		}
		return nil
	})
}

func (r *OrderRepository) ConfirmPayment(ctx context.Context, o *order.Order, from order.Status) error {
	if o.Payment == nil {
		return errors.New("order has no payment to confirm")
	}
	p := o.Payment

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := guardStatus(ctx, tx, o, from); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, confirmPaymentSQL, p.ID, string(p.Status), p.CashierID, p.PaidAt)
		if err != nil {
			return fmt.Errorf("confirming payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrConcurrentUpdate
		}
		if o.Receipt != nil {
			if _, err := tx.Exec(ctx, updateReceiptStatusSQL, o.Receipt.ID, string(o.Receipt.Status)); err != nil {
				return fmt.Errorf("updating receipt: %w", err)
			}
		}
		return nil
	})
}

func (r *OrderRepository) Cancel(ctx context.Context, o *order.Order, from order.Status) error {
	if o.Cancellation == nil {
		return errors.New("order has no cancellation record")
	}
	c := o.Cancellation

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := guardStatus(ctx, tx, o, from); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertCancellationSQL, c.ID, o.ID, c.Reason, c.CancelledAt); err != nil {
			if isUniqueViolation(err, cancellationsOrderKey) {
				return cancellation.ErrDuplicate
			}
			return fmt.Errorf("inserting cancellation: %w", err)
		}
		return nil
	})
}

// guardStatus moves the stored order from -> o.Status, failing with
// order.ErrConcurrentUpdate when another writer got there first.
func guardStatus(ctx context.Context, q querier, o *order.Order, from order.Status) error {
	tag, err := q.Exec(ctx, updateOrderStatusSQL, o.ID, string(from), string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrConcurrentUpdate
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string

		payID, payMethod, payStatus, cashierID *string
		payAmount                              decimal.NullDecimal
		payCreated, paidAt                     *time.Time

		rcID, rcMethod, rcStatus *string
		rcAmount                 decimal.NullDecimal
		rcPrinted                *time.Time

		cID, cReason *string
		cAt          *time.Time
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &o.Note, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt,
		&payID, &payMethod, &payAmount, &payStatus, &cashierID, &payCreated, &paidAt,
		&rcID, &rcMethod, &rcAmount, &rcStatus, &rcPrinted,
		&cID, &cReason, &cAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	if payID != nil {
		o.Payment = &order.Payment{
			ID:        *payID,
			OrderID:   o.ID,
			Method:    order.Method(deref(payMethod)),
			Amount:    payAmount.Decimal,
			Status:    order.PaymentStatus(deref(payStatus)),
			CashierID: deref(cashierID),
			PaidAt:    paidAt,
		}
		if payCreated != nil {
			o.Payment.CreatedAt = *payCreated
		}
	}
	if rcID != nil {
		o.Receipt = &order.Receipt{
			ID:      *rcID,
			OrderID: o.ID,
			Method:  order.Method(deref(rcMethod)),
			Amount:  rcAmount.Decimal,
			Status:  order.PaymentStatus(deref(rcStatus)),
		}
		if rcPrinted != nil {
			o.Receipt.PrintedAt = *rcPrinted
		}
	}
	if cID != nil {
		o.Cancellation = &cancellation.Record{
			ID:      *cID,
			OrderID: o.ID,
			Reason:  deref(cReason),
		}
		if cAt != nil {
			o.Cancellation.CancelledAt = *cAt
		}
	}
	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
