package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/authsvc/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines one token bucket per key.
type RateLimitConfig struct {
	// RequestsPerWindow is the sustained number of requests per Window.
	RequestsPerWindow int `yaml:"requests"`
	// Window is the period RequestsPerWindow is measured over.
	Window time.Duration `yaml:"window"`
	// Burst is how many requests may arrive at once.
	Burst int `yaml:"burst"`
}

// RateLimitProfiles groups the limits applied to the endpoint classes.
type RateLimitProfiles struct {
	// Strict guards credential checks (login).
	Strict RateLimitConfig `yaml:"strict"`
	// Moderate guards refresh token operations.
	Moderate RateLimitConfig `yaml:"moderate"`
	// Lenient guards authenticated reads.
	Lenient RateLimitConfig `yaml:"lenient"`
	// Public guards unauthenticated reads such as the JWKS.
	Public RateLimitConfig `yaml:"public"`
}

// DefaultRateLimitProfiles returns the production limits.
func DefaultRateLimitProfiles() RateLimitProfiles {
	return RateLimitProfiles{
		Strict:   RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5},
		Moderate: RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100},
		Public:   RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
	}
}

// WithEnv applies RATELIMIT_{STRICT,MODERATE,LENIENT,PUBLIC}_* overrides.
func (p RateLimitProfiles) WithEnv(lookup func(string) (string, bool)) RateLimitProfiles {
	p.Strict = ParseRateLimit("STRICT", p.Strict, lookup)
	p.Moderate = ParseRateLimit("MODERATE", p.Moderate, lookup)
	p.Lenient = ParseRateLimit("LENIENT", p.Lenient, lookup)
	p.Public = ParseRateLimit("PUBLIC", p.Public, lookup)
	return p
}

// ParseRateLimit reads RATELIMIT_{prefix}_REQUESTS, _WINDOW_SEC and _BURST
// through lookup (os.LookupEnv in production). Missing, malformed or
// non-positive values keep the default.
func ParseRateLimit(prefix string, def RateLimitConfig, lookup func(string) (string, bool)) RateLimitConfig {
	config := def

	positive := func(field string) (int, bool) {
		val, ok := lookup("RATELIMIT_" + prefix + "_" + field)
		if !ok || val == "" {
			return 0, false
		}
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}

	if n, ok := positive("REQUESTS"); ok {
		config.RequestsPerWindow = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		config.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		config.Burst = n
	}

	return config
}

// KeyExtractor groups requests for rate limiting (IP address, user id, ...).
type KeyExtractor func(*http.Request) string

// UserIDKeyExtractor returns the authenticated subject, or "".
func UserIDKeyExtractor(r *http.Request) string {
	return SubjectFromContext(r.Context())
}

// CompositeKeyExtractor joins the non-empty keys of several extractors,
// e.g. "192.168.1.1:42".
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters (full buckets) at most every 5 minutes.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware rejects requests over config with 429 and a
// Retry-After header. Requests without a key pass through.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	rl := &rateLimiter{
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getLimiter(key)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate_limit_exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP as resolved through proxies.
func RateLimitByIP(config RateLimitConfig, proxies TrustedProxies) Middleware {
	return RateLimitMiddleware(config, proxies.ClientIP)
}

// RateLimitByUser limits by authenticated subject plus IP. Unauthenticated
// requests fall back to IP only.
func RateLimitByUser(config RateLimitConfig, proxies TrustedProxies) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":",
		UserIDKeyExtractor,
		proxies.ClientIP,
	))
}
