package authsdk

import (
	"context"
	"net/http"
)

// UserInfo returns the authenticated user, refreshing the bearer token first
// when needed.
func (s *Session) UserInfo(ctx context.Context) (*UserInfoResponse, error) {
	token, fingerprint, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.doRequest(ctx, http.MethodGet, "/v1/userinfo", nil, token, fingerprint)
	if err != nil {
		return nil, err
	}

	var userInfo UserInfoResponse
	if err := decodeJSON(resp, &userInfo, http.StatusOK); err != nil {
		return nil, err
	}

	return &userInfo, nil
}
