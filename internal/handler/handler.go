// Package handler exposes the POS domain services over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/domain/order"
	"github.com/xenking/warung-pos/internal/domain/report"
	"github.com/xenking/warung-pos/internal/domain/staff"
	"github.com/xenking/warung-pos/internal/events"
	"github.com/xenking/warung-pos/internal/qris"
	"github.com/xenking/warung-pos/pkg/httpmiddleware"
)

// Authenticator resolves an API key to a staff principal.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (auth.Principal, error)
}

// Config holds non-dependency settings.
type Config struct {
	Merchant qris.Merchant
	// Location defines calendar days for report query parameters.
	Location *time.Location
	// QRSize is the PNG edge length in pixels.
	QRSize int
}

// Handler serves the kiosk, cashier, manager and admin endpoints.
type Handler struct {
	menu    *menu.Service
	orders  *order.Service
	reports *report.Service
	ledger  *cancellation.Ledger
	staff   *staff.Service
	auth    Authenticator
	hub     *events.Hub

	merchant qris.Merchant
	loc      *time.Location
	qrSize   int
	now      func() time.Time
}

// New builds a Handler. hub may be nil, in which case watch is disabled.
func New(
	cfg Config,
	menuSvc *menu.Service,
	orders *order.Service,
	reports *report.Service,
	ledger *cancellation.Ledger,
	staffSvc *staff.Service,
	authenticator Authenticator,
	hub *events.Hub,
) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	size := cfg.QRSize
	if size <= 0 {
		size = 256
	}
	return &Handler{
		menu:     menuSvc,
		orders:   orders,
		reports:  reports,
		ledger:   ledger,
		staff:    staffSvc,
		auth:     authenticator,
		hub:      hub,
		merchant: cfg.Merchant,
		loc:      loc,
		qrSize:   size,
		now:      time.Now,
	}
}

// Routes returns the /api router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.NameSpan)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Kiosk.
	r.Get("/menu", h.listMenu)
	r.Get("/menu/{id}", h.getMenuItem)
	r.Get("/cancel-reasons", h.cancelReasons)
	r.Post("/orders", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/payment", h.selectPayment)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}/qr.png", h.orderQR)
	r.Get("/orders/{id}/watch", h.watchOrder)

	// Staff.
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/me", h.me)

		r.Group(func(r chi.Router) {
			r.Use(require(auth.CapConfirmCash))
			r.Get("/cashier/pending", h.pendingCash)
			r.Get("/receipts/{id}", h.getReceipt)
			r.Post("/orders/{id}/payment/confirm", h.confirmPayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(require(auth.CapViewReports))
			r.Get("/reports/daily", h.dailyReport)
			r.Get("/reports/dashboard", h.dashboard)
			r.Get("/reports/menu", h.menuReport)
			r.Get("/reports/cancellations", h.cancellationReport)
			r.Get("/reports/hourly", h.hourlyReport)
			r.Get("/reports/weekly", h.weeklyReport)
			r.Get("/reports/top-customers", h.topCustomers)
			r.Get("/cancellations", h.listCancellations)
		})

		r.Group(func(r chi.Router) {
			r.Use(require(auth.CapManageMenu))
			r.Post("/menu", h.createMenuItem)
			r.Put("/menu/{id}", h.updateMenuItem)
			r.Put("/menu/{id}/availability", h.setAvailability)
			r.Delete("/menu/{id}", h.deleteMenuItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(require(auth.CapManageUsers))
			r.Get("/users", h.listUsers)
			r.Post("/users", h.createUser)
			r.Get("/users/{id}", h.getUser)
			r.Put("/users/{id}", h.updateUser)
			r.Delete("/users/{id}", h.deleteUser)
			r.Post("/users/{id}/keys", h.issueKey)
			r.Delete("/users/{id}/keys/{keyID}", h.revokeKey)
		})
	})
	return r
}
