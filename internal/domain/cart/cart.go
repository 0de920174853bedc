// Package cart is the in-memory selection a customer builds before checkout.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/internal/domain/menu"
)

// MaxQuantity is the largest quantity a single line may hold.
const MaxQuantity = 999

// Line is one distinct item in the cart. UnitPrice is captured when the
// item is first added and is not refreshed from the catalog.
type Line struct {
	ItemID    string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal returns UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps lines in insertion order, unique by item id.
// It is not safe for concurrent use.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(itemID string) int {
	for i := range c.lines {
		if c.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// Add puts one unit of it into the cart.
func (c *Cart) Add(it menu.Item) {
	c.AddN(it, 1)
}

// AddN puts n units of it into the cart. Non-positive n is ignored.
func (c *Cart) AddN(it menu.Item, n int) {
	if n <= 0 {
		return
	}
	if i := c.index(it.ID); i >= 0 {
		c.lines[i].Quantity += n
		return
	}
	c.lines = append(c.lines, Line{
		ItemID:    it.ID,
		Name:      it.Name,
		UnitPrice: it.Price,
		Quantity:  n,
	})
}

// Decrement removes one unit of itemID. The line goes away when its
// quantity reaches zero. Unknown ids are ignored.
func (c *Cart) Decrement(itemID string) {
	i := c.index(itemID)
	if i < 0 {
		return
	}
	c.lines[i].Quantity--
	if c.lines[i].Quantity == 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Remove drops the whole line for itemID.
func (c *Cart) Remove(itemID string) {
	if i := c.index(itemID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Quantity reports how many units of itemID are in the cart.
func (c *Cart) Quantity(itemID string) int {
	if i := c.index(itemID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Total is the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}
