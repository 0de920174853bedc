package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/staff"
)

func encodeUser(e *jx.Encoder, u staff.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("handle")
	e.Str(u.Handle)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("role")
	e.Str(string(u.Role))
	e.FieldStart("createdAt")
	timestamp(e, u.CreatedAt)
	e.ObjEnd()
}

func encodeKey(e *jx.Encoder, k staff.Key, secret string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(k.ID)
	e.FieldStart("userId")
	e.Str(k.UserID)
	e.FieldStart("name")
	e.Str(k.Name)
	e.FieldStart("active")
	e.Bool(k.Active)
	e.FieldStart("createdAt")
	timestamp(e, k.CreatedAt)
	if secret != "" {
		e.FieldStart("key")
		e.Str(secret)
	}
	e.ObjEnd()
}

func decodeUserDraft(w http.ResponseWriter, r *http.Request) (staff.Draft, error) {
	var d staff.Draft
	err := decodeObject(w, r, func(dec *jx.Decoder, key string) (err error) {
		switch key {
		case "handle":
			d.Handle, err = dec.Str()
		case "name":
			d.Name, err = dec.Str()
		case "role":
			d.Role, err = dec.Str()
		default:
			err = dec.Skip()
		}
		return err
	})
	return d, err
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.staff.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, u := range users {
			encodeUser(e, u)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.staff.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	keys, err := h.staff.Keys(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("user")
		encodeUser(e, *u)
		e.FieldStart("keys")
		e.ArrStart()
		for _, k := range keys {
			encodeKey(e, k, "")
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	d, err := decodeUserDraft(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	u, err := h.staff.Create(r.Context(), d)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, *u) })
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	d, err := decodeUserDraft(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	u, err := h.staff.Update(r.Context(), p, chi.URLParam(r, "id"), d)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, *u) })
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	if err := h.staff.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) {
	var name string
	if r.ContentLength != 0 {
		err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
			if key != "name" {
				return d.Skip()
			}
			name, err = d.Str()
			return err
		})
		if err != nil {
			fail(w, r, err)
			return
		}
	}

	k, err := h.staff.IssueKey(r.Context(), chi.URLParam(r, "id"), name)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeKey(e, k.Key, k.Secret) })
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	err := h.staff.RevokeKey(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "keyID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
