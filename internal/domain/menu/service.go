package menu

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/internal/domain/apperr"
)

// Draft is the admin input for creating or editing an item. Price arrives
// as text from the form and is parsed here.
type Draft struct {
	Name        string
	Category    string
	Price       string
	Description string
	Available   bool
}

// Service wraps the catalog with admin validation.
type Service struct {
	items Repository
}

// NewService creates a menu Service.
func NewService(items Repository) *Service {
	return &Service{items: items}
}

// MaxPrice is the largest accepted item price in Rupiah.
const MaxPrice = 99_999_999

var maxPrice = decimal.NewFromInt(MaxPrice)

// ParsePrice parses a whole, positive Rupiah amount.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperr.Invalid("price", "must not be blank")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Invalid("price", fmt.Sprintf("%q is not a number", s))
	}
	if !d.IsInteger() {
		return decimal.Zero, apperr.Invalid("price", "must be a whole amount")
	}
	if !d.IsPositive() {
		return decimal.Zero, apperr.Invalid("price", "must be greater than 0")
	}
	if d.GreaterThan(maxPrice) {
		return decimal.Zero, apperr.Invalid("price", fmt.Sprintf("must not exceed %s", maxPrice))
	}
	return d, nil
}

func (d Draft) toItem(id string) (*Item, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "must not be blank")
	}
	cat, ok := ParseCategory(d.Category)
	if !ok {
		return nil, apperr.Invalid("category", fmt.Sprintf("unknown category %q", d.Category))
	}
	price, err := ParsePrice(d.Price)
	if err != nil {
		return nil, err
	}
	return &Item{
		ID:          id,
		Name:        name,
		Category:    cat,
		Price:       price,
		Description: strings.TrimSpace(d.Description),
		Available:   d.Available,
	}, nil
}

// List returns catalog items matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	items, err := s.items.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list menu", err)
	}
	return items, nil
}

// Get returns a single item.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr("get menu item", id, err)
	}
	return it, nil
}

// Create validates d and adds a new item.
func (s *Service) Create(ctx context.Context, d Draft) (*Item, error) {
	it, err := d.toItem(uuid.New().String())
	if err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, it); err != nil {
		return nil, apperr.Persistence("create menu item", err)
	}
	return it, nil
}

// Update replaces name, category, price, description and availability of
// an existing item. Carts and orders that already hold the item keep their
// price snapshot.
func (s *Service) Update(ctx context.Context, id string, d Draft) (*Item, error) {
	it, err := d.toItem(id)
	if err != nil {
		return nil, err
	}
	if err := s.items.Update(ctx, it); err != nil {
		return nil, notFoundOr("update menu item", id, err)
	}
	return it, nil
}

// SetAvailability toggles whether the item can be ordered.
func (s *Service) SetAvailability(ctx context.Context, id string, available bool) error {
	if err := s.items.SetAvailability(ctx, id, available); err != nil {
		return notFoundOr("set availability", id, err)
	}
	return nil
}

// Delete removes an item that was never ordered. Ordered items stay for
// order history and can only be made unavailable.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.items.Delete(ctx, id)
	if errors.Is(err, ErrInUse) {
		return apperr.Precondition("delete menu item", ErrInUse)
	}
	if err != nil {
		return notFoundOr("delete menu item", id, err)
	}
	return nil
}

func notFoundOr(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &apperr.NotFoundError{Entity: "menu item", ID: id}
	}
	return apperr.Persistence(op, err)
}
