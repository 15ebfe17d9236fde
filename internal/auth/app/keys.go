package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

// InitSigningKey builds the process key provider and loads the key eagerly
// so a missing or broken key store stops startup instead of the first login.
//
// The returned error wraps *jwtx.ConfigurationError when no key file is
// configured and *jwtx.KeyLoadError when it cannot be read, decrypted or
// parsed.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.KeyProvider, error) {
	keys := jwtx.NewKeyProvider(jwtx.KeyStoreConfig{
		Path:       cfg.KeyFile,
		Passphrase: cfg.KeyPassphrase,
	})

	if err := keys.Load(); err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	signer, err := keys.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	logger.Info("signing key loaded",
		"alg", signer.Alg(),
		"kid", signer.KID(),
		"issuer", cfg.Issuer,
	)

	return keys, nil
}
