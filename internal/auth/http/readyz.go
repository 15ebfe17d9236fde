package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/authsdk"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// ReadyzHandler answers 503 unless the store answers a ping and the signing
// key is loaded. cache is optional.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys KeyStatus,
	cache Pinger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx)

		checks := &authsdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		degrade := func() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// Details go to the log only.
		if err := st.Ping(ctx); err != nil {
			log.Warn("readyz: database ping failed", "error", err)
			checks.Database = "error"
			degrade()
		}

		if !keys.IsReady() {
			checks.Signer = "error: no key loaded"
			degrade()
		}

		if cache != nil {
			checks.Cache = "ok"
			if err := cache.Ping(ctx); err != nil {
				log.Warn("readyz: cache ping failed", "error", err)
				checks.Cache = "error"
				degrade()
			}
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
