package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/warung-pos/internal/domain/menu"
)

var (
	gudeg = menu.Item{ID: "m1", Name: "Nasi Gudeg", Category: menu.Food, Price: decimal.NewFromInt(15000), Available: true}
	esTeh = menu.Item{ID: "m2", Name: "Es Teh Manis", Category: menu.Drink, Price: decimal.NewFromInt(3000), Available: true}
)

func TestCart_AddMergesLines(t *testing.T) {
	c := New()
	c.Add(gudeg)
	c.Add(gudeg)
	c.Add(esTeh)

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "m1", lines[0].ItemID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "m2", lines[1].ItemID)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.Equal(t, int64(33000), c.Total().IntPart())
}

func TestCart_AddN(t *testing.T) {
	c := New()
	c.AddN(gudeg, 3)
	c.AddN(gudeg, 2)
	c.AddN(esTeh, 0)
	c.AddN(esTeh, -4)

	require.Len(t, c.Lines(), 1)
	assert.Equal(t, 5, c.Quantity("m1"))
	assert.Equal(t, int64(75000), c.Total().IntPart())
}

func TestCart_DecrementRemovesEmptyLine(t *testing.T) {
	c := New()
	c.Add(gudeg)
	c.Add(gudeg)
	c.Add(esTeh)

	c.Decrement("m1")
	assert.Equal(t, 1, c.Quantity("m1"))

	c.Decrement("m1")
	assert.Equal(t, 0, c.Quantity("m1"))
	require.Len(t, c.Lines(), 1)
	assert.Equal(t, "m2", c.Lines()[0].ItemID)

	c.Decrement("unknown")
	assert.Equal(t, 1, c.Len())
}

func TestCart_Remove(t *testing.T) {
	c := New()
	c.Add(gudeg)
	c.Add(gudeg)
	c.Add(esTeh)

	c.Remove("m1")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(3000), c.Total().IntPart())
}

func TestCart_PriceSnapshot(t *testing.T) {
	c := New()
	item := gudeg
	c.Add(item)

	item.Price = decimal.NewFromInt(20000)
	c.Add(item)

	assert.Equal(t, 2, c.Quantity("m1"))
	assert.Equal(t, int64(30000), c.Total().IntPart())
}

func TestCart_TotalMatchesLines(t *testing.T) {
	c := New()
	for range 3 {
		c.Add(esTeh)
	}
	c.Add(gudeg)

	sum := decimal.Zero
	for _, l := range c.Lines() {
		require.GreaterOrEqual(t, l.Quantity, 1)
		sum = sum.Add(l.Subtotal())
	}
	assert.True(t, sum.Equal(c.Total()))
}

func TestCart_LinesIsCopy(t *testing.T) {
	c := New()
	c.Add(gudeg)

	lines := c.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, 1, c.Quantity("m1"))
}

func TestCart_Clear(t *testing.T) {
	c := New()
	c.Add(gudeg)
	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}
