package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/internal/domain/cancellation"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusAwaitingPayment, StatusCompleted, StatusCancelled},
	StatusAwaitingPayment: {StatusCompleted, StatusCancelled},
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Method is how the customer pays.
type Method string

const (
	MethodCash Method = "cash"
	MethodQRIS Method = "qris"
)

// ParseMethod accepts "cash"/"tunai" and "qris".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "tunai":
		return MethodCash, nil
	case "qris":
		return MethodQRIS, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// PaymentStatus is shared by payments and receipts.
type PaymentStatus string

const (
	PaymentAwaitingConfirmation PaymentStatus = "awaiting_confirmation"
	PaymentSucceeded            PaymentStatus = "succeeded"
)

// Lifecycle errors. Service methods wrap them in apperr.PreconditionError.
var (
	ErrNotFound           = errors.New("order not found")
	ErrNotPending         = errors.New("order is not pending")
	ErrNotAwaitingPayment = errors.New("order is not awaiting payment")
	ErrNotCashPayment     = errors.New("payment is not cash")
	ErrAlreadyConfirmed   = errors.New("payment already confirmed")
	ErrAlreadyCancelled   = errors.New("order already cancelled")
	ErrNotCancellable     = errors.New("completed orders cannot be cancelled")
	ErrConcurrentUpdate   = errors.New("order changed concurrently")
	ErrCheckoutInProgress = errors.New("checkout with this idempotency key is in progress")
)

// Line is an ordered item with the price captured at checkout.
type Line struct {
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Subtotal is always Quantity × UnitPrice.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Payment is the single payment attempt of an order.
type Payment struct {
	ID        string
	OrderID   string
	Method    Method
	Amount    decimal.Decimal
	Status    PaymentStatus
	CashierID string
	CreatedAt time.Time
	PaidAt    *time.Time
}

// Receipt mirrors the payment for the customer. Its ID is what the customer
// shows at the cashier.
type Receipt struct {
	ID        string
	OrderID   string
	Method    Method
	Amount    decimal.Decimal
	Status    PaymentStatus
	PrintedAt time.Time
}

// Order is the aggregate root. Payment, Receipt and Cancellation are nil
// until the matching transition happens.
type Order struct {
	ID           string
	CustomerID   string
	CustomerName string
	Note         string
	Status       Status
	Total        decimal.Decimal
	Lines        []Line
	Payment      *Payment
	Receipt      *Receipt
	Cancellation *cancellation.Record
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LinesTotal sums line subtotals.
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// CanTransitionTo reports whether next is reachable from the current status.
func (o *Order) CanTransitionTo(next Status) bool {
	for _, s := range transitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// SelectPayment records the chosen method. Cash waits for a cashier; QRIS is
// settled immediately.
func (o *Order) SelectPayment(m Method, paymentID, receiptID string, now time.Time) error {
	switch o.Status {
	case StatusPending:
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrNotPending
	}

	p := &Payment{
		ID:        paymentID,
		OrderID:   o.ID,
		Method:    m,
		Amount:    o.Total,
		CreatedAt: now,
	}
	switch m {
	case MethodCash:
		p.Status = PaymentAwaitingConfirmation
		o.Status = StatusAwaitingPayment
	case MethodQRIS:
		p.Status = PaymentSucceeded
		p.PaidAt = &now
		o.Status = StatusCompleted
	default:
		return fmt.Errorf("unknown payment method %q", m)
	}

	o.Payment = p
	o.Receipt = &Receipt{
		ID:        receiptID,
		OrderID:   o.ID,
		Method:    m,
		Amount:    o.Total,
		Status:    p.Status,
		PrintedAt: now,
	}
	o.UpdatedAt = now
	return nil
}

// ConfirmCash settles an awaiting cash payment on behalf of cashierID.
func (o *Order) ConfirmCash(cashierID string, now time.Time) error {
	if o.Payment != nil && o.Payment.Method != MethodCash {
		return ErrNotCashPayment
	}
	if o.Payment != nil && o.Payment.Status == PaymentSucceeded {
		return ErrAlreadyConfirmed
	}
	if o.Status != StatusAwaitingPayment || o.Payment == nil {
		if o.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		return ErrNotAwaitingPayment
	}

	o.Payment.Status = PaymentSucceeded
	o.Payment.CashierID = cashierID
	o.Payment.PaidAt = &now
	if o.Receipt != nil {
		o.Receipt.Status = PaymentSucceeded
	}
	o.Status = StatusCompleted
	o.UpdatedAt = now
	return nil
}

// Cancel moves a pending or awaiting order to cancelled with rec attached.
func (o *Order) Cancel(rec cancellation.Record) error {
	switch o.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusCompleted:
		return ErrNotCancellable
	}
	if !o.CanTransitionTo(StatusCancelled) {
		return ErrNotCancellable
	}
	o.Status = StatusCancelled
	o.Cancellation = &rec
	o.UpdatedAt = rec.CancelledAt
	return nil
}

// Repository persists orders. Each mutating method writes every affected
// row in one transaction and succeeds only if the stored status still
// equals from; otherwise it returns ErrConcurrentUpdate.
type Repository interface {
	// Create inserts the order and its lines.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByReceiptID(ctx context.Context, receiptID string) (*Order, error)
	// ListAwaitingCash returns orders waiting for a cashier, oldest first.
	ListAwaitingCash(ctx context.Context) ([]Order, error)
	// SavePayment inserts o.Payment and o.Receipt and updates o.Status.
	SavePayment(ctx context.Context, o *Order, from Status) error
	// ConfirmPayment updates payment, receipt and order status.
	ConfirmPayment(ctx context.Context, o *Order, from Status) error
	// Cancel updates order status and appends o.Cancellation.
	Cancel(ctx context.Context, o *Order, from Status) error
}
