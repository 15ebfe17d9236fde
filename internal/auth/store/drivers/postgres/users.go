package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, login, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (r *usersRepo) Create(ctx context.Context, login, passwordHash string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (login, password_hash, created_at) VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		login, passwordHash, time.Now().UTC(),
	))
	if err != nil {
		return domain.User{}, mapConstraint(err)
	}
	return u, nil
}

func (r *usersRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetByLogin(ctx context.Context, login string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`, login))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}
