package http

import (
	"net/http"

	"github.com/aussiebroadwan/authsvc/pkg/authsdk"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
)

// UserInfoHandler returns the identity carried by the validated bearer token.
// It must sit behind httpx.AuthnMiddleware.
type UserInfoHandler struct{}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		httpx.WriteBearerError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		Subject:           claims.Subject,
		PreferredUsername: claims.PreferredUsername,
	})
}
