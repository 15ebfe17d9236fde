package httpx

import (
	"net/http"
	"time"
)

// FingerprintCookieName carries the fingerprint secret a bearer token is
// bound to. It is HttpOnly so page scripts cannot read it.
const FingerprintCookieName = "Fgp"

// SetFingerprintCookie sets the fingerprint secret cookie. A zero maxAge
// makes it a session cookie.
func SetFingerprintCookie(w http.ResponseWriter, secret string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     FingerprintCookieName,
		Value:    secret,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearFingerprintCookie expires the fingerprint cookie.
func ClearFingerprintCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     FingerprintCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// FingerprintFromRequest returns the presented fingerprint secret or "".
func FingerprintFromRequest(r *http.Request) string {
	c, err := r.Cookie(FingerprintCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
