package httpx

import (
	"context"

	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeySubject ctxKey = "subject"
	CtxKeyClaims  ctxKey = "claims"
)

func contextWithAuth(ctx context.Context, c *jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeySubject, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// SubjectFromContext returns the authenticated subject or "".
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySubject).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromContext returns the validated bearer claims, if any.
func ClaimsFromContext(ctx context.Context) (*jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(*jwtx.Claims)
	return c, ok
}
