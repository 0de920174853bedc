// Package customer resolves walk-in customers by name.
package customer

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/warung-pos/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when no customer matches.
	ErrNotFound = errors.New("customer not found")
	// ErrHandleTaken is returned by Create when the generated handle collides.
	ErrHandleTaken = errors.New("customer handle taken")
)

// Customer is a guest who placed at least one order.
type Customer struct {
	ID        string
	Handle    string
	Name      string
	CreatedAt time.Time
}

// Ref identifies the customer at checkout. ID wins when set; otherwise Name
// is matched case-insensitively.
type Ref struct {
	ID   string
	Name string
}

// Repository defines customer storage.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	// FindByName matches the display name case-insensitively.
	FindByName(ctx context.Context, name string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
}

const createAttempts = 3

// Resolver finds or registers customers.
type Resolver struct {
	customers Repository
	now       func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(customers Repository) *Resolver {
	return &Resolver{customers: customers, now: time.Now}
}

// Handle builds the login handle for a new customer:
// cust_<name lowercased without whitespace>_<suffix>.
func Handle(name, suffix string) string {
	var b strings.Builder
	b.WriteString("cust_")
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('_')
	b.WriteString(suffix)
	return b.String()
}

// Resolve returns the referenced customer, creating one when the name is new.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (*Customer, error) {
	if ref.ID != "" {
		c, err := r.customers.GetByID(ctx, ref.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, &apperr.NotFoundError{Entity: "customer", ID: ref.ID}
		case err != nil:
			return nil, apperr.Persistence("get customer", err)
		}
		return c, nil
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return nil, apperr.Invalid("customer name", "must not be blank")
	}

	c, err := r.customers.FindByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Persistence("find customer", err)
	}

	for range createAttempts {
		id := uuid.New()
		c = &Customer{
			ID:        id.String(),
			Handle:    Handle(name, strings.ReplaceAll(id.String(), "-", "")[:8]),
			Name:      name,
			CreatedAt: r.now(),
		}
		err = r.customers.Create(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrHandleTaken) {
			return nil, apperr.Persistence("create customer", err)
		}
	}
	return nil, apperr.Persistence("create customer", err)
}
