package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://auth.example.test"
	testAudience = "bartab-api"
	testPassword = "correct horse battery"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type recordingTracker struct {
	mu    sync.Mutex
	users []int64
}

func (r *recordingTracker) Record(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return int64(len(r.users)), nil
}

func (r *recordingTracker) Recorded() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.users...)
}

type testEnv struct {
	store     *sqlite.Store
	clock     *fakeClock
	keys      *jwtx.KeyProvider
	metrics   *metrics.Metrics
	tracker   *recordingTracker
	ledger    *service.RefreshLedger
	issuance  *service.AccessIssuance
	validator *service.BearerValidator
	users     *service.UserService
	alice     domain.User
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestKeys(t *testing.T, alg string) *jwtx.KeyProvider {
	t.Helper()

	pemKey, err := cryptox.GenerateSigningKey(alg)
	require.NoError(t, err)
	keys := jwtx.NewKeyProvider(jwtx.KeyStoreConfig{Data: pemKey})
	require.NoError(t, keys.Load())
	return keys
}

// newTestEnv wires the services the way the app does, over an in-memory
// store, a fake clock and a fresh EdDSA key. Refresh tokens live 900s.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   newTestStore(t),
		clock:   newClock(t0),
		keys:    newTestKeys(t, "EdDSA"),
		metrics: metrics.New(),
		tracker: &recordingTracker{},
	}

	hasher := cryptox.NewPasswordHasher("test-pepper")

	env.ledger = service.NewRefreshLedger(env.store, 900*time.Second)
	env.ledger.Now = env.clock.Now
	env.ledger.Metrics = env.metrics
	env.ledger.Reuse = env.tracker

	env.issuance = &service.AccessIssuance{
		Keys:      env.keys,
		Ledger:    env.ledger,
		Store:     env.store,
		Hasher:    hasher,
		Issuer:    testIssuer,
		Audience:  []string{testAudience},
		AccessTTL: 15 * time.Minute,
		Metrics:   env.metrics,
		Now:       env.clock.Now,
	}

	env.validator = service.NewBearerValidator(env.keys, jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
		Now:      env.clock.Now,
	}, env.metrics)

	env.users = &service.UserService{Store: env.store, Hasher: hasher}

	alice, err := env.users.CreateUser(context.Background(), "alice", testPassword)
	require.NoError(t, err)
	env.alice = alice

	return env
}

// counterValue sums every series of the named counter.
func counterValue(t *testing.T, env *testEnv, name string) float64 {
	t.Helper()

	families, err := env.metrics.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
