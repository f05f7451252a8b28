package whoop

import (
	"time"
)

// TokenRecord is the stored Whoop credential for one Scuzi user.
// There is at most one record per user; writes go through Upsert.
type TokenRecord struct {
	ID           int64
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
