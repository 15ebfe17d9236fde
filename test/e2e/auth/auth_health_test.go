package auth_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

func TestHealthEndpoints(t *testing.T) {
	svc := setupAuthService(t, true)
	client := svc.client()
	ctx := context.Background()

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
	require.Equal(t, "ok", ready.Checks.Cache)
}

func TestJWKSPublishesSigningKey(t *testing.T) {
	svc := setupAuthService(t, true)
	user := svc.createUser(t)
	client := svc.client()
	ctx := context.Background()

	jwks, err := client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	require.Equal(t, "OKP", key.Kty)
	require.Equal(t, "EdDSA", key.Alg)
	require.Equal(t, "sig", key.Use)
	require.NotEmpty(t, key.Kid)

	session, err := client.Login(ctx, user.Login, testPassword)
	require.NoError(t, err)

	var claims jwtx.Claims
	token, _, err := jwt.NewParser().ParseUnverified(session.AccessToken(), &claims)
	require.NoError(t, err)
	require.Equal(t, key.Kid, token.Header["kid"], "bearer must name the published key")
	require.Equal(t, "authsvc-e2e", claims.Issuer)
	require.Contains(t, []string(claims.Audience), testAudience)
	require.Equal(t, user.Login, claims.PreferredUsername)
	require.NotEmpty(t, claims.Fingerprint)
	require.NotEqual(t, session.Fingerprint(), claims.Fingerprint, "the token carries a digest, never the secret")
}
