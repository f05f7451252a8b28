package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scuzi-app/connect-gateway/internal/domain/whoop"
)

var _ whoop.TokenRepo = (*TokenRepo)(nil)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

const (
	// The insert-or-update is a single atomic statement so two first-time
	// connects for the same user cannot race. xmax = 0 distinguishes a
	// freshly inserted row from an updated one.
	qTokenUpsert = `
INSERT INTO whoop_tokens (user_id, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET access_token  = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at    = EXCLUDED.expires_at,
    updated_at    = NOW()
RETURNING id, user_id, access_token, refresh_token, expires_at, created_at, updated_at, (xmax = 0);`

	qTokenByUserID = `
SELECT id, user_id, access_token, refresh_token, expires_at, created_at, updated_at
FROM whoop_tokens
WHERE user_id = $1;`

	qTokenUpdateAccess = `
UPDATE whoop_tokens
SET access_token = $2,
    expires_at   = $3,
    updated_at   = NOW()
WHERE user_id = $1
RETURNING id, user_id, access_token, refresh_token, expires_at, created_at, updated_at;`
)

func (r *TokenRepo) Upsert(ctx context.Context, rec *whoop.TokenRecord) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var created bool
	if err := r.db.Pool.QueryRow(ctx, qTokenUpsert,
		rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt).
		Scan(&rec.ID, &rec.UserID, &rec.AccessToken, &rec.RefreshToken,
			&rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt, &created); err != nil {
		if uniqueViolation(err) {
			return false, ErrConflict
		}
		return false, fmt.Errorf("token upsert: %w", err)
	}
	return created, nil
}

func (r *TokenRepo) Get(ctx context.Context, userID string) (*whoop.TokenRecord, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rec whoop.TokenRecord
	if err := scanToken(r.db.Pool.QueryRow(ctx, qTokenByUserID, userID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *TokenRepo) UpdateAccess(ctx context.Context, userID, accessToken string, expiresAt time.Time) (*whoop.TokenRecord, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rec whoop.TokenRecord
	if err := scanToken(r.db.Pool.QueryRow(ctx, qTokenUpdateAccess, userID, accessToken, expiresAt), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanToken(row pgx.Row, out *whoop.TokenRecord) error {
	if err := row.Scan(&out.ID, &out.UserID, &out.AccessToken, &out.RefreshToken,
		&out.ExpiresAt, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return whoop.ErrNotFound
		}
		return fmt.Errorf("scan whoop tokens: %w", err)
	}
	return nil
}
