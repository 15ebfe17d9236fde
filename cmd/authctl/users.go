package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aussiebroadwan/authsvc/internal/auth/app"
	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
)

func runHashPassword(_ context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("hash-password", out)
	password := fs.StringP("password", "p", "", "password to hash (required)")
	pepperFile := fs.String("pepper-file", os.Getenv("AUTH_PEPPER_FILE"), "pepper file shared with the server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		return errors.New("hash-password: --password is required")
	}

	pepper, err := cryptox.LoadOrCreatePepper(*pepperFile)
	if err != nil {
		return err
	}

	hash, err := cryptox.NewPasswordHasher(pepper).Hash(*password)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}

func runCreateUser(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("create-user", out)
	login := fs.StringP("login", "l", "", "login name (required)")
	password := fs.StringP("password", "p", "", "password; omit to generate one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	generated := false
	if *password == "" {
		p, err := cryptox.GeneratePassword()
		if err != nil {
			return err
		}
		*password, generated = p, true
	}

	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return err
	}

	users := &service.UserService{Store: st, Hasher: cryptox.NewPasswordHasher(pepper)}
	user, err := users.CreateUser(ctx, *login, *password)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("create-user: login %q is taken", *login)
		}
		return fmt.Errorf("create-user: %w", err)
	}

	fmt.Fprintf(out, "created user %d (%s)\n", user.ID, user.Login)
	if generated {
		fmt.Fprintf(out, "password: %s\n", *password)
	}
	return nil
}

func runRevokeUser(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("revoke-user", out)
	id := fs.Int64("id", 0, "user id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("revoke-user: --id is required")
	}

	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Users().GetByID(ctx, *id); err != nil {
		return fmt.Errorf("revoke-user: user %d: %w", *id, err)
	}

	ledger := service.NewRefreshLedger(st, cfg.RefreshTokenTTL)
	n, err := ledger.RevokeAllForUser(ctx, *id, domain.RevokedAdmin)
	if err != nil {
		return fmt.Errorf("revoke-user: %w", err)
	}

	fmt.Fprintf(out, "revoked %d refresh token(s) of user %d\n", n, *id)
	return nil
}

// openStore opens the store the server is configured with.
func openStore() (app.Config, store.Store, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Config{}, nil, err
	}

	st, err := app.OpenStore(cfg)
	if err != nil {
		return app.Config{}, nil, err
	}
	return cfg, st, nil
}
