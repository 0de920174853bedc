package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/menu"
)

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	f := menu.Filter{OnlyAvailable: r.URL.Query().Get("all") != "true"}
	if c := r.URL.Query().Get("category"); c != "" {
		cat, ok := menu.ParseCategory(c)
		if !ok {
			fail(w, r, apperr.Invalid("category", "must be food or drink"))
			return
		}
		f.Category = cat
	}

	items, err := h.menu.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, it := range items {
			encodeMenuItem(e, it)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.menu.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMenuItem(e, *it) })
}

func (h *Handler) cancelReasons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		strs(e, cancellation.OrderReasons)
		e.FieldStart("payment")
		strs(e, cancellation.PaymentReasons)
		e.ObjEnd()
	})
}

func strs(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (menu.Draft, error) {
	d := menu.Draft{Available: true}
	err := decodeObject(w, r, func(dec *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			d.Name, err = dec.Str()
		case "category":
			d.Category, err = dec.Str()
		case "price":
			d.Price, err = decodeString(dec)
		case "description":
			d.Description, err = dec.Str()
		case "available":
			d.Available, err = dec.Bool()
		default:
			err = dec.Skip()
		}
		return err
	})
	return d, err
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDraft(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	it, err := h.menu.Create(r.Context(), d)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeMenuItem(e, *it) })
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDraft(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	it, err := h.menu.Update(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMenuItem(e, *it) })
}

func (h *Handler) setAvailability(w http.ResponseWriter, r *http.Request) {
	var (
		available bool
		seen      bool
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "available" {
			return d.Skip()
		}
		seen = true
		available, err = d.Bool()
		return err
	})
	if err == nil && !seen {
		err = apperr.Invalid("available", "is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.menu.SetAvailability(r.Context(), id, available); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
