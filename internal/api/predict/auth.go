package predict

import (
	"net/http"
	"strings"

	"seasoncast/pkg/auth"
	"seasoncast/pkg/errors"
)

// TokenValidator checks bearer tokens; *auth.JWTService satisfies it
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

var _ TokenValidator = (*auth.JWTService)(nil)

// WithAuth requires a bearer token carrying the history scope on every
// route that exposes stored predictions. Without it those routes are open.
func (h *Handler) WithAuth(tokens TokenValidator) *Handler {
	h.tokens = tokens
	return h
}

func (h *Handler) requireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.tokens == nil {
			next(w, r)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="seasoncast"`)
			h.writeError(w, r, errors.Wrap(errors.ErrUnauthorized, "bearer token required"))
			return
		}

		claims, err := h.tokens.ValidateToken(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="seasoncast", error="invalid_token"`)
			h.writeError(w, r, err)
			return
		}
		if !claims.HasScope(scope) {
			h.writeError(w, r, errors.Wrapf(errors.ErrForbidden, "token for %s lacks scope %s", claims.Subject, scope))
			return
		}

		h.log.Debugw("Authorized history request", "subject", claims.Subject, "path", r.URL.Path)
		next(w, r)
	}
}
