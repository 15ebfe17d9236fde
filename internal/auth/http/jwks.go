package http

import (
	"net/http"

	"github.com/aussiebroadwan/authsvc/pkg/authsdk"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// JWKSHandler exposes the verification key as a JSON Web Key Set.
func JWKSHandler(keys jwtx.KeySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ks, err := keys.KeySet()
		if err != nil {
			slogx.FromContext(r.Context()).Error("jwks: signing key unavailable", "error", err)
			authsdk.ErrUnavailable.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(ks.PublicJWKS()))
	}
}
