package whoop

import (
	"context"
	"time"
)

type TokenRepo interface {
	// Upsert inserts the record or updates it in place keyed by UserID.
	// The returned flag reports whether a new row was created.
	Upsert(ctx context.Context, rec *TokenRecord) (created bool, err error)
	Get(ctx context.Context, userID string) (*TokenRecord, error)
	// UpdateAccess rotates the access token and expiry without touching
	// the stored refresh token.
	UpdateAccess(ctx context.Context, userID, accessToken string, expiresAt time.Time) (*TokenRecord, error)
}
