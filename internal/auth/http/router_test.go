package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authhttp "github.com/aussiebroadwan/authsvc/internal/auth/http"
	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authsvc/pkg/authsdk"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

const (
	testIssuer   = "https://auth.example.test"
	testAudience = "bartab-api"
	testPassword = "correct horse battery"
)

type testServer struct {
	router *authhttp.Router
	store  *sqlite.Store
}

func newTestServer(t *testing.T, limits *httpx.RateLimitProfiles) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	pemKey, err := cryptox.GenerateSigningKey("ES256")
	require.NoError(t, err)
	keys := jwtx.NewKeyProvider(jwtx.KeyStoreConfig{Data: pemKey})
	require.NoError(t, keys.Load())

	m := metrics.New()
	hasher := cryptox.NewPasswordHasher("pepper")

	ledger := service.NewRefreshLedger(st, time.Hour)
	ledger.Metrics = m

	users := &service.UserService{Store: st, Hasher: hasher}
	_, err = users.CreateUser(context.Background(), "alice", testPassword)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := authhttp.NewRouter(keys, "test", st, logger)
	r.Issuance = &service.AccessIssuance{
		Keys:      keys,
		Ledger:    ledger,
		Store:     st,
		Hasher:    hasher,
		Issuer:    testIssuer,
		Audience:  []string{testAudience},
		AccessTTL: 5 * time.Minute,
		Metrics:   m,
	}
	r.Validator = service.NewBearerValidator(keys, jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
	}, m)
	r.Metrics = m
	r.RefreshCookieTTL = time.Hour
	if limits != nil {
		r.RateLimits = *limits
	}
	r.ApplyRoutes()

	return &testServer{router: r, store: st}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:5555"
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func withFingerprint(secret string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: httpx.FingerprintCookieName, Value: secret})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func fingerprintCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == httpx.FingerprintCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", httpx.FingerprintCookieName)
	return nil
}

func decodeToken(t *testing.T, rec *httptest.ResponseRecorder) authsdk.TokenResponse {
	t.Helper()
	var tr authsdk.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	return tr
}

func requireUnauthenticated(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Bearer error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))
	require.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
}

func (s *testServer) login(t *testing.T) (authsdk.TokenResponse, string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Login: "alice", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeToken(t, rec), fingerprintCookie(t, rec).Value
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Login: "alice", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	tr := decodeToken(t, rec)
	require.NotEmpty(t, tr.AccessToken)
	require.NotEmpty(t, tr.RefreshToken)
	require.Equal(t, "Bearer", tr.TokenType)
	require.EqualValues(t, 300, tr.ExpiresIn)

	c := fingerprintCookie(t, rec)
	require.NotEmpty(t, c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	require.Equal(t, 3600, c.MaxAge)
	require.NotContains(t, rec.Body.String(), c.Value, "fingerprint secret must not appear in the body")
}

func TestLoginRejections(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("wrong password", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Login: "alice", Password: "nope"})
		requireUnauthenticated(t, rec)
	})

	t.Run("unknown login", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Login: "mallory", Password: testPassword})
		requireUnauthenticated(t, rec)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/login", `{"login":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"error":"invalid_request"}`, rec.Body.String())
	})
}

func TestUserInfo(t *testing.T) {
	s := newTestServer(t, nil)
	tr, secret := s.login(t)

	t.Run("bearer with its fingerprint", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/userinfo", nil, withBearer(tr.AccessToken), withFingerprint(secret))
		require.Equal(t, http.StatusOK, rec.Code)

		var info authsdk.UserInfoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		require.NotEmpty(t, info.Subject)
		require.Equal(t, "alice", info.PreferredUsername)
	})

	t.Run("stolen bearer without cookie", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/userinfo", nil, withBearer(tr.AccessToken))
		requireUnauthenticated(t, rec)
	})

	t.Run("stolen bearer with another cookie", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/userinfo", nil, withBearer(tr.AccessToken), withFingerprint("fgp-xyz"))
		requireUnauthenticated(t, rec)
	})

	t.Run("no bearer", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/userinfo", nil, withFingerprint(secret))
		requireUnauthenticated(t, rec)
	})
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	first, secret := s.login(t)

	rec := s.do(t, http.MethodPost, "/v1/auth/refresh",
		authsdk.RefreshRequest{RefreshToken: first.RefreshToken}, withFingerprint(secret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	second := decodeToken(t, rec)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.Equal(t, secret, fingerprintCookie(t, rec).Value)

	// The new bearer is bound to the same cookie.
	rec = s.do(t, http.MethodGet, "/v1/userinfo", nil, withBearer(second.AccessToken), withFingerprint(secret))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("replay revokes the session", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/refresh",
			authsdk.RefreshRequest{RefreshToken: first.RefreshToken}, withFingerprint(secret))
		requireUnauthenticated(t, rec)

		rec = s.do(t, http.MethodPost, "/v1/auth/refresh",
			authsdk.RefreshRequest{RefreshToken: second.RefreshToken}, withFingerprint(secret))
		requireUnauthenticated(t, rec)
	})
}

func TestRefreshRejections(t *testing.T) {
	s := newTestServer(t, nil)
	tr, secret := s.login(t)

	t.Run("missing cookie", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/refresh", authsdk.RefreshRequest{RefreshToken: tr.RefreshToken})
		requireUnauthenticated(t, rec)
	})

	t.Run("missing cookie leaves the token usable", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/refresh",
			authsdk.RefreshRequest{RefreshToken: tr.RefreshToken}, withFingerprint(secret))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/refresh",
			authsdk.RefreshRequest{RefreshToken: "not-a-token"}, withFingerprint(secret))
		requireUnauthenticated(t, rec)
	})

	t.Run("empty token", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/auth/refresh", authsdk.RefreshRequest{}, withFingerprint(secret))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, nil)
	tr, secret := s.login(t)

	rec := s.do(t, http.MethodPost, "/v1/auth/logout", authsdk.RefreshRequest{RefreshToken: tr.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	c := fingerprintCookie(t, rec)
	require.Empty(t, c.Value)
	require.Negative(t, c.MaxAge)

	rec = s.do(t, http.MethodPost, "/v1/auth/refresh",
		authsdk.RefreshRequest{RefreshToken: tr.RefreshToken}, withFingerprint(secret))
	requireUnauthenticated(t, rec)

	for _, body := range []any{
		authsdk.RefreshRequest{RefreshToken: tr.RefreshToken}, // already revoked
		authsdk.RefreshRequest{RefreshToken: "unknown"},
		"garbage",
	} {
		rec := s.do(t, http.MethodPost, "/v1/auth/logout", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestJWKS(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var jwks authsdk.JWKSResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "EC", jwks.Keys[0].Kty)
	require.Equal(t, "ES256", jwks.Keys[0].Alg)
	require.NotEmpty(t, jwks.Keys[0].Kid)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
	require.Empty(t, health.Checks.Cache)

	require.NoError(t, s.store.Close())
	rec = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `authsvc_sessions_issued_total{source="credentials"} 1`)
}

func TestLoginRateLimited(t *testing.T) {
	limits := httpx.DefaultRateLimitProfiles()
	limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	s := newTestServer(t, &limits)

	s.login(t)

	rec := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Login: "alice", Password: testPassword})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLoginRateLimitIgnoresSpoofedForwarding(t *testing.T) {
	limits := httpx.DefaultRateLimitProfiles()
	limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	s := newTestServer(t, &limits)

	limited := 0
	for i := range 10 {
		rec := s.do(t, http.MethodPost, "/v1/auth/login",
			authsdk.LoginRequest{Login: "alice", Password: "wrong password"},
			func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
				r.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
			})
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	require.Equal(t, 9, limited, "client supplied headers must not mint fresh buckets")
}
