// Package menu holds the restaurant catalog: items, prices and availability.
package menu

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested menu item does not exist.
	ErrNotFound = errors.New("menu item not found")
	// ErrInUse is returned by Delete when past orders reference the item.
	ErrInUse = errors.New("menu item has orders, mark it unavailable instead")
)

// Category groups menu items on the ordering screen.
type Category string

const (
	Food  Category = "food"
	Drink Category = "drink"
)

// ParseCategory accepts the canonical names and the upper-case labels used
// by older kiosk builds.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "food", "makanan":
		return Food, true
	case "drink", "minuman":
		return Drink, true
	}
	return "", false
}

// Item is a sellable dish or beverage. Price is in whole Rupiah.
type Item struct {
	ID          string
	Name        string
	Category    Category
	Price       decimal.Decimal
	Description string
	Available   bool
}

// Filter narrows List results. Zero value lists everything.
type Filter struct {
	Category      Category
	OnlyAvailable bool
}

// Repository defines catalog storage.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	SetAvailability(ctx context.Context, id string, available bool) error
	Delete(ctx context.Context, id string) error
}
