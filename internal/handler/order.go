package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/customer"
	"github.com/xenking/warung-pos/internal/domain/order"
	"github.com/xenking/warung-pos/internal/qris"
)

// HeaderIdempotencyKey deduplicates checkout retries.
const HeaderIdempotencyKey = "Idempotency-Key"

var errNoPayment = errors.New("no payment method selected")

type checkoutBody struct {
	items    []order.CartItem
	customer customer.Ref
	note     string
}

func decodeCheckout(w http.ResponseWriter, r *http.Request) (checkoutBody, error) {
	var b checkoutBody
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var it order.CartItem
				if err := d.Obj(func(d *jx.Decoder, key string) (err error) {
					switch key {
					case "menuItemId":
						it.MenuItemID, err = d.Str()
					case "quantity":
						it.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				b.items = append(b.items, it)
				return nil
			})
		case "customerId":
			b.customer.ID, err = d.Str()
		case "customerName":
			b.customer.Name, err = d.Str()
		case "note":
			b.note, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	body, err := decodeCheckout(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	c, err := h.orders.BuildCart(ctx, body.items)
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Checkout(ctx, order.CheckoutRequest{
		Cart:           c,
		Customer:       body.customer,
		Note:           body.note,
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) selectPayment(w http.ResponseWriter, r *http.Request) {
	var raw string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "method" {
			return d.Skip()
		}
		raw, err = d.Str()
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	m, err := order.ParseMethod(raw)
	if err != nil {
		fail(w, r, apperr.Invalid("method", err.Error()))
		return
	}

	o, err := h.orders.SelectPaymentMethod(r.Context(), chi.URLParam(r, "id"), m)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var reason string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "reason" {
			return d.Skip()
		}
		reason, err = d.Str()
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// orderQR renders the receipt ID for cash orders, which the cashier scans,
// and a dynamic QRIS payload for qris orders.
func (h *Handler) orderQR(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if o.Payment == nil || o.Receipt == nil {
		fail(w, r, apperr.Precondition("qr code", errNoPayment))
		return
	}

	content := o.Receipt.ID
	if o.Payment.Method == order.MethodQRIS {
		content, err = qris.Payload(h.merchant, o.Total, o.Receipt.ID)
		if err != nil {
			fail(w, r, errors.Wrap(err, "build qris payload"))
			return
		}
	}
	png, err := qris.PNG(content, h.qrSize)
	if err != nil {
		fail(w, r, errors.Wrap(err, "render qr"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) pendingCash(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.PendingCash(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	o, err := h.orders.ConfirmCashPayment(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
