// Package report computes read-only dashboards from order history.
package report

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/internal/domain/order"
)

// OrderFact is one order as seen by reporting.
type OrderFact struct {
	OrderID      string
	CustomerID   string
	CustomerName string
	Status       order.Status
	Total        decimal.Decimal
	CreatedAt    time.Time
	// Payment fields are empty when no method was selected.
	Method        order.Method
	PaymentStatus order.PaymentStatus
}

// LineFact is one order line joined with its order's status.
type LineFact struct {
	OrderID     string
	OrderStatus order.Status
	MenuItemID  string
	Name        string
	Category    string
	Quantity    int
	UnitPrice   decimal.Decimal
	CreatedAt   time.Time
}

// CancellationFact is a cancellation joined with the order total.
type CancellationFact struct {
	OrderID     string
	Reason      string
	OrderTotal  decimal.Decimal
	CancelledAt time.Time
}

// Repository loads facts for orders created (or cancelled) in [from, to).
type Repository interface {
	Orders(ctx context.Context, from, to time.Time) ([]OrderFact, error)
	Lines(ctx context.Context, from, to time.Time) ([]LineFact, error)
	Cancellations(ctx context.Context, from, to time.Time) ([]CancellationFact, error)
}

// Bucket is a count with an amount.
type Bucket struct {
	Count  int
	Amount decimal.Decimal
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Count++
	b.Amount = b.Amount.Add(amount)
}

// DailySummary is the manager dashboard header.
type DailySummary struct {
	Date         time.Time
	TotalOrders  int
	ByStatus     map[order.Status]Bucket
	ByMethod     map[order.Method]Bucket
	Revenue      decimal.Decimal
	AverageOrder decimal.Decimal
}

// Summarize reduces facts of one day. ByMethod counts every payment and
// sums only succeeded ones.
func Summarize(date time.Time, facts []OrderFact) DailySummary {
	s := DailySummary{
		Date:     date,
		ByStatus: make(map[order.Status]Bucket),
		ByMethod: make(map[order.Method]Bucket),
		Revenue:  decimal.Zero,
	}
	for _, f := range facts {
		s.TotalOrders++
		b := s.ByStatus[f.Status]
		b.add(f.Total)
		s.ByStatus[f.Status] = b

		if f.Method != "" {
			mb := s.ByMethod[f.Method]
			mb.Count++
			if f.PaymentStatus == order.PaymentSucceeded {
				mb.Amount = mb.Amount.Add(f.Total)
			}
			s.ByMethod[f.Method] = mb
		}
		if f.Status == order.StatusCompleted {
			s.Revenue = s.Revenue.Add(f.Total)
		}
	}
	s.AverageOrder = decimal.Zero
	if n := s.ByStatus[order.StatusCompleted].Count; n > 0 {
		s.AverageOrder = s.Revenue.Div(decimal.NewFromInt(int64(n))).Round(0)
	}
	return s
}

// ItemPerformance is one row of the menu ranking.
type ItemPerformance struct {
	Rank       int
	MenuItemID string
	Name       string
	Category   string
	Quantity   int
	Revenue    decimal.Decimal
	Orders     int
}

// RankItems aggregates completed lines per item, ordered by quantity then
// revenue, both descending.
func RankItems(lines []LineFact) []ItemPerformance {
	byItem := make(map[string]*ItemPerformance)
	seen := make(map[[2]string]bool)
	for _, l := range lines {
		if l.OrderStatus != order.StatusCompleted {
			continue
		}
		p, ok := byItem[l.MenuItemID]
		if !ok {
			p = &ItemPerformance{MenuItemID: l.MenuItemID, Name: l.Name, Category: l.Category, Revenue: decimal.Zero}
			byItem[l.MenuItemID] = p
		}
		p.Quantity += l.Quantity
		p.Revenue = p.Revenue.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		if k := [2]string{l.MenuItemID, l.OrderID}; !seen[k] {
			seen[k] = true
			p.Orders++
		}
	}

	out := make([]ItemPerformance, 0, len(byItem))
	for _, p := range byItem {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b ItemPerformance) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// ReasonStat is one reason in the cancellation breakdown.
type ReasonStat struct {
	Reason      string
	Count       int
	LostRevenue decimal.Decimal
}

// CancellationBreakdown groups cancellations by reason.
type CancellationBreakdown struct {
	Date        time.Time
	Reasons     []ReasonStat
	Total       int
	LostRevenue decimal.Decimal
}

// BreakDown groups facts by reason, most frequent first.
func BreakDown(date time.Time, facts []CancellationFact) CancellationBreakdown {
	idx := make(map[string]int)
	b := CancellationBreakdown{Date: date, LostRevenue: decimal.Zero}
	for _, f := range facts {
		i, ok := idx[f.Reason]
		if !ok {
			i = len(b.Reasons)
			idx[f.Reason] = i
			b.Reasons = append(b.Reasons, ReasonStat{Reason: f.Reason, LostRevenue: decimal.Zero})
		}
		b.Reasons[i].Count++
		b.Reasons[i].LostRevenue = b.Reasons[i].LostRevenue.Add(f.OrderTotal)
		b.Total++
		b.LostRevenue = b.LostRevenue.Add(f.OrderTotal)
	}
	slices.SortStableFunc(b.Reasons, func(x, y ReasonStat) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return y.LostRevenue.Cmp(x.LostRevenue)
	})
	return b
}

// Period is one bucket of a time series.
type Period struct {
	Start     time.Time
	Orders    int
	Completed int
	Cancelled int
	Revenue   decimal.Decimal
}

// Series splits facts into n buckets of step starting at start.
func Series(start time.Time, step time.Duration, n int, facts []OrderFact) []Period {
	bounds := make([]time.Time, n+1)
	for i := range bounds {
		bounds[i] = start.Add(time.Duration(i) * step)
	}
	return bucket(bounds, facts)
}

// DailySeries splits facts into n calendar days starting at start, in the
// location of start. Days around a DST change are 23 or 25 hours long.
func DailySeries(start time.Time, n int, facts []OrderFact) []Period {
	bounds := make([]time.Time, n+1)
	for i := range bounds {
		bounds[i] = start.AddDate(0, 0, i)
	}
	return bucket(bounds, facts)
}

// bucket counts facts into [bounds[i], bounds[i+1]).
func bucket(bounds []time.Time, facts []OrderFact) []Period {
	n := len(bounds) - 1
	out := make([]Period, n)
	for i := range out {
		out[i] = Period{Start: bounds[i], Revenue: decimal.Zero}
	}
	for _, f := range facts {
		if f.CreatedAt.Before(bounds[0]) || !f.CreatedAt.Before(bounds[n]) {
			continue
		}
		i := sort.Search(n, func(i int) bool { return f.CreatedAt.Before(bounds[i+1]) })
		p := &out[i]
		p.Orders++
		switch f.Status {
		case order.StatusCompleted:
			p.Completed++
			p.Revenue = p.Revenue.Add(f.Total)
		case order.StatusCancelled:
			p.Cancelled++
		}
	}
	return out
}

// CustomerStat ranks customers by spend.
type CustomerStat struct {
	CustomerID string
	Name       string
	Orders     int
	Spent      decimal.Decimal
	LastOrder  time.Time
}

// RankCustomers sums completed orders per customer, highest spend first,
// then by order count. limit <= 0 returns everyone.
func RankCustomers(facts []OrderFact, limit int) []CustomerStat {
	byID := make(map[string]*CustomerStat)
	for _, f := range facts {
		if f.Status != order.StatusCompleted {
			continue
		}
		c, ok := byID[f.CustomerID]
		if !ok {
			c = &CustomerStat{CustomerID: f.CustomerID, Name: f.CustomerName, Spent: decimal.Zero}
			byID[f.CustomerID] = c
		}
		c.Orders++
		c.Spent = c.Spent.Add(f.Total)
		if f.CreatedAt.After(c.LastOrder) {
			c.LastOrder = f.CreatedAt
		}
	}
	out := make([]CustomerStat, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b CustomerStat) int {
		if c := b.Spent.Cmp(a.Spent); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Orders, a.Orders); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
