package handler

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/report"
)

const (
	dateLayout          = "2006-01-02"
	defaultTopDays      = 30
	defaultTopCustomers = 10
)

// dateParam parses ?name=YYYY-MM-DD in the report location, defaulting to
// today.
func (h *Handler) dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return h.now().In(h.loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, v, h.loc)
	if err != nil {
		return time.Time{}, apperr.Invalid(name, "must be YYYY-MM-DD")
	}
	return t, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Invalid(name, "must be an integer")
	}
	return n, nil
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("userId")
		e.Str(p.UserID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("role")
		e.Str(string(p.Role))
		e.FieldStart("capabilities")
		e.ArrStart()
		for _, c := range p.Role.Capabilities() {
			e.Str(string(c))
		}
		e.ArrEnd()
		e.FieldStart("views")
		e.ArrStart()
		for _, v := range auth.Views(p.Role) {
			e.Str(string(v))
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func encodeBuckets[K ~string](e *jx.Encoder, m map[K]report.Bucket) {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	e.ObjStart()
	for _, k := range keys {
		b := m[k]
		e.FieldStart(string(k))
		e.ObjStart()
		e.FieldStart("count")
		e.Int(b.Count)
		e.FieldStart("amount")
		money(e, b.Amount)
		e.ObjEnd()
	}
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s report.DailySummary) {
	e.ObjStart()
	e.FieldStart("date")
	e.Str(s.Date.Format(dateLayout))
	e.FieldStart("totalOrders")
	e.Int(s.TotalOrders)
	e.FieldStart("byStatus")
	encodeBuckets(e, s.ByStatus)
	e.FieldStart("byMethod")
	encodeBuckets(e, s.ByMethod)
	e.FieldStart("revenue")
	money(e, s.Revenue)
	e.FieldStart("averageOrder")
	money(e, s.AverageOrder.Round(0))
	e.ObjEnd()
}

func encodeItems(e *jx.Encoder, items []report.ItemPerformance) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("rank")
		e.Int(it.Rank)
		e.FieldStart("menuItemId")
		e.Str(it.MenuItemID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("category")
		e.Str(it.Category)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("orders")
		e.Int(it.Orders)
		e.FieldStart("revenue")
		money(e, it.Revenue)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeBreakdown(e *jx.Encoder, b report.CancellationBreakdown) {
	e.ObjStart()
	e.FieldStart("date")
	e.Str(b.Date.Format(dateLayout))
	e.FieldStart("total")
	e.Int(b.Total)
	e.FieldStart("lostRevenue")
	money(e, b.LostRevenue)
	e.FieldStart("reasons")
	e.ArrStart()
	for _, rs := range b.Reasons {
		e.ObjStart()
		e.FieldStart("reason")
		e.Str(rs.Reason)
		e.FieldStart("count")
		e.Int(rs.Count)
		e.FieldStart("lostRevenue")
		money(e, rs.LostRevenue)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodePeriods(e *jx.Encoder, ps []report.Period) {
	e.ArrStart()
	for _, p := range ps {
		e.ObjStart()
		e.FieldStart("start")
		e.Str(p.Start.Format(time.RFC3339))
		e.FieldStart("orders")
		e.Int(p.Orders)
		e.FieldStart("completed")
		e.Int(p.Completed)
		e.FieldStart("cancelled")
		e.Int(p.Cancelled)
		e.FieldStart("revenue")
		money(e, p.Revenue)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func (h *Handler) dailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.reports.Daily(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, *s) })
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	d, err := h.reports.Dashboard(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("summary")
		encodeSummary(e, d.Summary)
		e.FieldStart("items")
		encodeItems(e, d.Items)
		e.FieldStart("cancellations")
		encodeBreakdown(e, d.Cancellations)
		e.FieldStart("hourly")
		encodePeriods(e, d.Hourly)
		e.ObjEnd()
	})
}

func (h *Handler) menuReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := h.reports.MenuPerformance(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItems(e, items) })
}

func (h *Handler) cancellationReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	b, err := h.reports.Cancellations(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBreakdown(e, *b) })
}

func (h *Handler) hourlyReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	ps, err := h.reports.Hourly(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePeriods(e, ps) })
}

func (h *Handler) weeklyReport(w http.ResponseWriter, r *http.Request) {
	end, err := h.dateParam(r, "end")
	if err != nil {
		fail(w, r, err)
		return
	}
	ps, err := h.reports.Weekly(r.Context(), end)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePeriods(e, ps) })
}

func (h *Handler) topCustomers(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", defaultTopDays)
	if err != nil {
		fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultTopCustomers)
	if err != nil {
		fail(w, r, err)
		return
	}
	stats, err := h.reports.TopCustomers(r.Context(), days, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, s := range stats {
			e.ObjStart()
			e.FieldStart("customerId")
			e.Str(s.CustomerID)
			e.FieldStart("name")
			e.Str(s.Name)
			e.FieldStart("orders")
			e.Int(s.Orders)
			e.FieldStart("spent")
			money(e, s.Spent)
			e.FieldStart("lastOrder")
			timestamp(e, s.LastOrder)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

// listCancellations returns records between ?from and ?to, both inclusive
// calendar days. Both default to today.
func (h *Handler) listCancellations(w http.ResponseWriter, r *http.Request) {
	from, err := h.dateParam(r, "from")
	if err != nil {
		fail(w, r, err)
		return
	}
	to, err := h.dateParam(r, "to")
	if err != nil {
		fail(w, r, err)
		return
	}
	start := h.reports.Day(from)
	end := h.reports.Day(to).AddDate(0, 0, 1)

	recs, err := h.ledger.Between(r.Context(), start, end)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, rec := range recs {
			encodeCancellation(e, rec)
		}
		e.ArrEnd()
	})
}
