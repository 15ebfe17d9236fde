package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

// BearerValidator validates a bearer token together with the fingerprint
// secret presented beside it.
type BearerValidator interface {
	Validate(ctx context.Context, token, fingerprintSecret string) (*jwtx.Claims, error)
}

// AuthnMiddleware requires a valid, fingerprint-bound bearer token and puts
// its claims into the request context. Every failure gets the same 401.
func AuthnMiddleware(v BearerValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			claims, err := v.Validate(ctx, BearerToken(r), FingerprintFromRequest(r))
			if err != nil {
				WriteBearerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>", or "".
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WriteBearerError writes the uniform RFC 6750 invalid_token rejection.
func WriteBearerError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, "unauthenticated")
}
