package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/pkg/authsdk"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// SessionHandler serves login, refresh and logout. The fingerprint secret
// only ever travels in the Fgp cookie.
type SessionHandler struct {
	Issuance  *service.AccessIssuance
	CookieTTL time.Duration
}

// HandleLogin serves POST /v1/auth/login.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.Issuance.Login(r.Context(), strings.TrimSpace(req.Login), req.Password)
	if err != nil {
		writeSessionError(w, r, "login", err)
		return
	}

	h.writeSession(w, sess)
}

// HandleRefresh serves POST /v1/auth/refresh. The presented Fgp cookie is
// bound into the new bearer token and set again on the response.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.Issuance.IssueFromRefresh(r.Context(), req.RefreshToken, httpx.FingerprintFromRequest(r))
	if err != nil {
		writeSessionError(w, r, "refresh", err)
		return
	}

	h.writeSession(w, sess)
}

// HandleLogout serves POST /v1/auth/logout. It answers 200 for unknown,
// malformed or already revoked tokens so it cannot be used to probe them.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err == nil && req.RefreshToken != "" {
		if err := h.Issuance.Revoke(ctx, req.RefreshToken); err != nil {
			log.Info("logout: refresh token not revoked", "error", err)
		}
	}

	httpx.ClearFingerprintCookie(w)
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *SessionHandler) writeSession(w http.ResponseWriter, sess *domain.Session) {
	httpx.SetFingerprintCookie(w, sess.FingerprintSecret, h.CookieTTL)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  sess.AccessToken,
		TokenType:    sess.TokenType,
		ExpiresIn:    sess.ExpiresIn,
		RefreshToken: sess.RefreshToken,
	})
}

// writeSessionError collapses every authentication failure into the same
// 401. Anything else is a server error.
func writeSessionError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenReuseDetected):
		httpx.WriteBearerError(w)
	default:
		slogx.FromContext(r.Context()).Error(op+" failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
