package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authsvc/pkg/httpx"
)

const (
	ErrorCodeUnauthenticated = "unauthenticated"
	ErrorCodeInvalidRequest  = "invalid_request"
	ErrorCodeRateLimited     = "rate_limit_exceeded"
	ErrorCodeServerError     = "server_error"
	ErrorCodeUnavailable     = "unavailable"
)

// APIError is a non-2xx response. The server writes it with WriteError and
// the client parses it back, so errors.Is works against the predefined
// values below.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authsdk: %d %s", e.StatusCode, e.Code)
}

// Is matches on status code and error code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.StatusCode == e.StatusCode && t.Code == e.Code
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code)
}

var (
	// ErrUnauthenticated covers every authentication failure: bad
	// credentials, a dead refresh token, a bearer token rejected for any
	// reason. The server never says which.
	ErrUnauthenticated = &APIError{StatusCode: http.StatusUnauthorized, Code: ErrorCodeUnauthenticated}

	ErrInvalidRequest = &APIError{StatusCode: http.StatusBadRequest, Code: ErrorCodeInvalidRequest}
	ErrRateLimited    = &APIError{StatusCode: http.StatusTooManyRequests, Code: ErrorCodeRateLimited}
	ErrServerError    = &APIError{StatusCode: http.StatusInternalServerError, Code: ErrorCodeServerError}
	ErrUnavailable    = &APIError{StatusCode: http.StatusServiceUnavailable, Code: ErrorCodeUnavailable}
)

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not JSON keep the status code with a generic code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: errResp.Error}
	}

	return &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
}
