package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at, revoked_reason, replaced_by_hash`

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var (
		t                    domain.RefreshToken
		createdAt, expiresAt int64
		revokedAt            sql.NullInt64
		reason, replacedBy   sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &createdAt, &expiresAt, &revokedAt, &reason, &replacedBy); err != nil {
		return domain.RefreshToken{}, err
	}
	t.CreatedAt = fromUnix(createdAt)
	t.ExpiresAt = fromUnix(expiresAt)
	t.RevokedAt = mapNullUnixPtr(revokedAt)
	t.RevokedReason = domain.RevocationReason(mapNullString(reason))
	t.ReplacedByHash = mapNullString(replacedBy)
	return t, nil
}

func (r *refreshTokensRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.TokenHash,
		toUnix(t.CreatedAt),
		toUnix(t.ExpiresAt),
		mapOptionalUnix(t.RevokedAt),
		mapStringNull(string(t.RevokedReason)),
		mapStringNull(t.ReplacedByHash),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	t, err := scanRefreshToken(r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash))
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) UpdateIfActive(
	ctx context.Context,
	hash string,
	revokedAt time.Time,
	successorHash string,
	now time.Time,
) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked_at = ?, revoked_reason = ?, replaced_by_hash = ?
		  WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?`,
		toUnix(revokedAt), string(domain.RevokedRotated), successorHash, hash, toUnix(now),
	)
	return affectedOne(res, err)
}

func (r *refreshTokensRepo) RevokeIfActive(
	ctx context.Context,
	hash string,
	revokedAt time.Time,
	reason domain.RevocationReason,
	now time.Time,
) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked_at = ?, revoked_reason = ?
		  WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?`,
		toUnix(revokedAt), string(reason), hash, toUnix(now),
	)
	return affectedOne(res, err)
}

func (r *refreshTokensRepo) RevokeAllActiveForUser(
	ctx context.Context,
	userID int64,
	revokedAt time.Time,
	reason domain.RevocationReason,
	now time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked_at = ?, revoked_reason = ?
		  WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		toUnix(revokedAt), string(reason), userID, toUnix(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ListByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, toUnix(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
