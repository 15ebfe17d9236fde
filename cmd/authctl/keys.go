package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

func runGenKey(_ context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("gen-key", out)
	alg := fs.String("alg", "EdDSA", "signing algorithm: RS256, ES256 or EdDSA")
	outPath := fs.StringP("out", "o", "", "write the PEM key to this file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pemKey, err := cryptox.GenerateSigningKey(*alg)
	if err != nil {
		return err
	}

	if *outPath == "" {
		_, err := out.Write(pemKey)
		return err
	}
	return writeSecretFile(*outPath, pemKey)
}

func runSealKey(_ context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("seal-key", out)
	in := fs.StringP("in", "i", "", "PEM private key to seal (required)")
	outPath := fs.StringP("out", "o", "", "sealed output file (required)")
	passphrase := fs.String("passphrase", "", "passphrase (default: $AUTH_KEY_PASSPHRASE)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *in == "" || *outPath == "" {
		return errors.New("seal-key: --in and --out are required")
	}
	if *passphrase == "" {
		*passphrase = os.Getenv("AUTH_KEY_PASSPHRASE")
	}

	pemKey, err := os.ReadFile(filepath.Clean(*in))
	if err != nil {
		return fmt.Errorf("seal-key: %w", err)
	}

	// Refuse to seal something the server would not accept.
	if _, err := jwtx.ParseKeyStore(pemKey, ""); err != nil {
		return fmt.Errorf("seal-key: input is not a usable signing key: %w", err)
	}

	sealed, err := cryptox.Seal(pemKey, *passphrase)
	if err != nil {
		return fmt.Errorf("seal-key: %w", err)
	}

	if err := writeSecretFile(*outPath, sealed); err != nil {
		return err
	}
	fmt.Fprintf(out, "sealed %s -> %s\n", *in, *outPath)
	return nil
}

func writeSecretFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
