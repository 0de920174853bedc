package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/warung-pos/internal/domain/auth"
)

// HeaderAPIKey carries the staff API key.
const HeaderAPIKey = "api_key"

// authenticate resolves the api_key header into a principal stored in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			fail(w, r, auth.ErrUnauthorized)
			return
		}
		p, err := h.auth.Authenticate(r.Context(), key)
		if err != nil {
			fail(w, r, err)
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.String("user_id", p.UserID), zap.String("role", string(p.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require rejects principals lacking c with 403.
func require(c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				fail(w, r, auth.ErrUnauthorized)
				return
			}
			if err := p.Require(c); err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
