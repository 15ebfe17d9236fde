package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsvc/internal/auth/app"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

// useTempStore points the store commands at a fresh sqlite file.
func useTempStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTH_CONFIG_FILE", "")
	t.Setenv("AUTH_DATABASE_DRIVER", "sqlite")
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "auth.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestUnknownCommand(t *testing.T) {
	out, err := runCmd(t, "frobnicate")
	require.ErrorContains(t, err, "unknown command")
	require.Contains(t, out, "create-user")

	_, err = runCmd(t)
	require.Error(t, err)

	_, err = runCmd(t, "help")
	require.NoError(t, err)
}

func TestHashPassword(t *testing.T) {
	dir := useTempStore(t)
	pepperFile := filepath.Join(dir, "pepper")

	out, err := runCmd(t, "hash-password", "--password", "hunter22", "--pepper-file", pepperFile)
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	pepper, err := cryptox.LoadOrCreatePepper(pepperFile)
	require.NoError(t, err)
	require.NoError(t, cryptox.NewPasswordHasher(pepper).Verify("hunter22", hash))

	_, err = runCmd(t, "hash-password")
	require.Error(t, err)
}

func TestGenAndSealKey(t *testing.T) {
	dir := t.TempDir()
	pemPath := filepath.Join(dir, "key.pem")
	sealedPath := filepath.Join(dir, "key.sealed")

	_, err := runCmd(t, "gen-key", "--alg", "ES256", "-o", pemPath)
	require.NoError(t, err)

	out, err := runCmd(t, "seal-key", "--in", pemPath, "--out", sealedPath, "--passphrase", "s3cret")
	require.NoError(t, err)
	require.Contains(t, out, "sealed")

	sealed, err := os.ReadFile(sealedPath)
	require.NoError(t, err)
	require.True(t, cryptox.IsSealed(sealed))

	key, err := jwtx.ParseKeyStore(sealed, "s3cret")
	require.NoError(t, err)
	require.NotNil(t, key)

	_, err = jwtx.ParseKeyStore(sealed, "wrong")
	require.Error(t, err)
}

func TestSealKeyRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "junk.pem")
	require.NoError(t, os.WriteFile(in, []byte("not a key"), 0o600))

	_, err := runCmd(t, "seal-key", "--in", in, "--out", filepath.Join(dir, "out"), "--passphrase", "x")
	require.ErrorContains(t, err, "not a usable signing key")

	_, err = runCmd(t, "seal-key", "--in", in)
	require.Error(t, err)
}

func TestCreateAndRevokeUser(t *testing.T) {
	useTempStore(t)
	ctx := context.Background()

	out, err := runCmd(t, "create-user", "--login", "alice")
	require.NoError(t, err)
	m := regexp.MustCompile(`created user (\d+) \(alice\)\npassword: (\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 3, out)

	_, err = runCmd(t, "create-user", "--login", "alice", "--password", "another-password")
	require.ErrorContains(t, err, "taken")

	_, err = runCmd(t, "create-user", "--login", "bob", "--password", "short")
	require.ErrorIs(t, err, service.ErrInvalidUser)

	// Give alice two live sessions, then revoke them.
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	st, err := app.OpenStore(cfg)
	require.NoError(t, err)
	user, err := st.Users().GetByLogin(ctx, "alice")
	require.NoError(t, err)
	ledger := service.NewRefreshLedger(st, cfg.RefreshTokenTTL)
	for range 2 {
		_, _, err := ledger.Issue(ctx, user.ID)
		require.NoError(t, err)
	}
	require.NoError(t, st.Close())

	out, err = runCmd(t, "revoke-user", "--id", m[1])
	require.NoError(t, err)
	require.Contains(t, out, "revoked 2 refresh token(s)")

	_, err = runCmd(t, "revoke-user", "--id", "999")
	require.Error(t, err)
}
