// Package cancellation records why orders were abandoned.
package cancellation

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/warung-pos/internal/domain/apperr"
)

// ErrNotFound is returned when an order has no cancellation record.
var ErrNotFound = errors.New("cancellation not found")

// ErrDuplicate is returned by storage when the order already has a record.
var ErrDuplicate = errors.New("order already has a cancellation record")

// Preset reasons offered on the cancel dialogs. Customers may also type
// their own.
var (
	OrderReasons = []string{
		"Berubah pikiran",
		"Terlalu mahal",
		"Salah pesan",
		"Waktu tunggu terlalu lama",
	}
	PaymentReasons = []string{
		"Berubah pikiran tentang pembayaran",
		"Metode pembayaran tidak tersedia",
		"Terlalu lama menunggu",
		"Ingin mengubah pesanan",
	}
)

const maxReasonLen = 500

// Record is the single cancellation entry for an order.
type Record struct {
	ID          string
	OrderID     string
	Reason      string
	CancelledAt time.Time
}

// NewRecord validates the reason and builds a record stamped at now.
func NewRecord(orderID, reason string, now time.Time) (Record, error) {
	if orderID == "" {
		return Record{}, apperr.Invalid("order id", "must not be blank")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Record{}, apperr.Invalid("reason", "must not be blank")
	}
	if len(reason) > maxReasonLen {
		return Record{}, apperr.Invalid("reason", "too long")
	}
	return Record{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		Reason:      reason,
		CancelledAt: now,
	}, nil
}

// Repository reads the ledger. Records are appended by the order
// repository within the cancel transaction.
type Repository interface {
	FindByOrderID(ctx context.Context, orderID string) (*Record, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Record, error)
}

// Ledger is the read side of cancellation history.
type Ledger struct {
	records Repository
}

// NewLedger creates a Ledger.
func NewLedger(records Repository) *Ledger {
	return &Ledger{records: records}
}

// ForOrder returns the record for orderID.
func (l *Ledger) ForOrder(ctx context.Context, orderID string) (*Record, error) {
	r, err := l.records.FindByOrderID(ctx, orderID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &apperr.NotFoundError{Entity: "cancellation", ID: orderID}
	case err != nil:
		return nil, apperr.Persistence("find cancellation", err)
	}
	return r, nil
}

// Between lists records cancelled in [from, to), newest first.
func (l *Ledger) Between(ctx context.Context, from, to time.Time) ([]Record, error) {
	if !to.After(from) {
		return nil, apperr.Invalid("range", "end must be after start")
	}
	rs, err := l.records.ListBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("list cancellations", err)
	}
	return rs, nil
}
