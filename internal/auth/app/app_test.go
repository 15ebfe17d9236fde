package app_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsvc/internal/auth/app"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/pkg/authsdk"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

// testConfig returns a config over a temp directory with a sealed EdDSA key.
func testConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()

	pemKey, err := cryptox.GenerateSigningKey("EdDSA")
	require.NoError(t, err)
	sealed, err := cryptox.Seal(pemKey, "key-pass")
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "signing.key")
	require.NoError(t, os.WriteFile(keyFile, sealed, 0o600))

	cfg := app.DefaultConfig()
	cfg.Audience = []string{"bartab-api"}
	cfg.KeyFile = keyFile
	cfg.KeyPassphrase = "key-pass"
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.LogLevel = "error"
	return cfg
}

func TestNewRejectsMissingKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeyFile = ""

	_, err := app.New(cfg)
	var cfgErr *jwtx.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewRejectsBadKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeyPassphrase = "wrong"

	_, err := app.New(cfg)
	var loadErr *jwtx.KeyLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audience = nil

	_, err := app.New(cfg)
	var cfgErr *app.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestApplicationServesSessions(t *testing.T) {
	cfg := testConfig(t)
	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()

	// Seed a user through the same store the application will open.
	st, err := app.OpenStore(cfg)
	require.NoError(t, err)
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	require.NoError(t, err)
	users := &service.UserService{Store: st, Hasher: cryptox.NewPasswordHasher(pepper)}
	_, err = users.CreateUser(context.Background(), "alice", "correct horse battery")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	session, err := client.Login(context.Background(), "alice", "correct horse battery")
	require.NoError(t, err)

	info, err := session.UserInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice", info.PreferredUsername)

	health, err := client.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Checks.Cache)

	// Replaying a rotated refresh token is counted in Redis.
	old := session.RefreshToken()
	require.NoError(t, session.Refresh(context.Background()))
	_, _, err = client.RefreshGrant(context.Background(), old, session.Fingerprint())
	require.ErrorIs(t, err, authsdk.ErrUnauthenticated)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], "authsvc:reuse:"))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplicationJWKSMatchesKey(t *testing.T) {
	cfg := testConfig(t)

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var jwks authsdk.JWKSResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)
}

func TestRunReleasesResourcesWhenListenFails(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(t)
	cfg.Port = busy.Addr().(*net.TCPAddr).Port

	application, err := app.New(cfg)
	require.NoError(t, err)

	require.ErrorContains(t, application.Run(), "server failed")

	// The store is closed, so readiness can no longer ping it.
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTrustedProxiesFeedRateLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.TrustedProxies = []string{"10.0.0.0/8"}
	cfg.RateLimits.Strict.RequestsPerWindow = 1
	cfg.RateLimits.Strict.Burst = 1

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	login := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			strings.NewReader(`{"login":"nobody","password":"wrong password"}`))
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, login("203.0.113.1"))
	require.Equal(t, http.StatusTooManyRequests, login("203.0.113.1"))
	require.Equal(t, http.StatusUnauthorized, login("203.0.113.2"), "each client behind the proxy has its own bucket")
}
