package sqlite

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
	var (
		u         domain.User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &createdAt); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = fromUnix(createdAt)
	return u, nil
}

func (r *usersRepo) Create(ctx context.Context, login, passwordHash string) (domain.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (login, password_hash, created_at) VALUES (?, ?, ?)`,
		login, passwordHash, toUnix(now),
	)
	if err != nil {
		return domain.User{}, mapConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           id,
		Login:        login,
		PasswordHash: passwordHash,
		CreatedAt:    fromUnix(toUnix(now)),
	}, nil
}

func (r *usersRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetByLogin(ctx context.Context, login string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = ?`, login))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}
