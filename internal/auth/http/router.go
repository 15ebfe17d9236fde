package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// KeyStatus is the part of the key provider the HTTP layer needs: the public
// keys for the JWKS and a readiness flag.
type KeyStatus interface {
	jwtx.KeySource
	IsReady() bool
}

// Pinger is implemented by optional dependencies checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         KeyStatus
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Issuance   *service.AccessIssuance
	Validator  httpx.BearerValidator
	Metrics    *metrics.Metrics
	RateLimits httpx.RateLimitProfiles

	// TrustedProxies may set X-Forwarded-For for rate limit keys. Empty
	// means limits key on the peer address.
	TrustedProxies httpx.TrustedProxies

	// Cache is pinged by /readyz when set (the Redis reuse tracker).
	Cache Pinger

	// RefreshCookieTTL is the Max-Age of the fingerprint cookie. It should
	// match the refresh token lifetime.
	RefreshCookieTTL time.Duration
}

func NewRouter(
	keys KeyStatus,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		RateLimits:   httpx.DefaultRateLimitProfiles(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		Issuance:  r.Issuance,
		CookieTTL: r.RefreshCookieTTL,
	}

	// Login checks a password: strict, by IP.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.RateLimits.Strict, r.TrustedProxies),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.RateLimits.Moderate, r.TrustedProxies),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.RateLimits.Moderate, r.TrustedProxies),
		),
	)
}

func (r *Router) registerUsers() {
	secured := httpx.Chain(&UserInfoHandler{},
		httpx.AuthnMiddleware(r.Validator), // signature, iss/aud/exp, fingerprint
		httpx.RateLimitByUser(r.RateLimits.Lenient, r.TrustedProxies),
	)

	r.Mux.Handle("GET /v1/userinfo", secured)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.RateLimits.Public, r.TrustedProxies),
		),
	)

	// Monitoring may poll often.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.RateLimits.Lenient, r.TrustedProxies),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Cache),
			httpx.RateLimitByIP(r.RateLimits.Lenient, r.TrustedProxies),
		),
	)

	// Scraped from inside the cluster; not rate limited.
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
}
