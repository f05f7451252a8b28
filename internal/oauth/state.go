package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// stateIssuerName is the fixed iss claim stamped into every state token.
const stateIssuerName = "scuzi-connect"

var (
	ErrConfiguration    = errors.New("whoop client id or state secret is not configured")
	ErrMissingState     = errors.New("missing oauth state")
	ErrStateMismatch    = errors.New("oauth state does not match state cookie")
	ErrInvalidSignature = errors.New("oauth state signature is invalid")
	ErrExpiredState     = errors.New("oauth state has expired")
)

// StateClaims is the signed payload of the CSRF state token: a single-use
// nonce plus the registered issuer/iat/exp claims.
type StateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateIssuer mints HMAC-SHA256 signed state tokens for the connect flow.
type StateIssuer struct {
	clientID string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewStateIssuer(clientID, secret string, ttl time.Duration, now func() time.Time) *StateIssuer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StateIssuer{
		clientID: clientID,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      now,
	}
}

// TTL is the signed lifetime of issued tokens. The state cookie max-age
// must use the same value so the two expiries cannot drift apart.
func (s *StateIssuer) TTL() time.Duration { return s.ttl }

// Issue returns a signed state token carrying a fresh 16-byte nonce.
func (s *StateIssuer) Issue() (string, error) {
	if s.clientID == "" || len(s.secret) == 0 {
		return "", ErrConfiguration
	}

	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}

	now := s.now()
	claims := StateClaims{
		Nonce: hex.EncodeToString(buf[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// StateValidator checks the state echoed back by the provider against the
// cookie copy and the token's own signature and expiry.
type StateValidator struct {
	secret []byte
	now    func() time.Time
}

func NewStateValidator(secret string, now func() time.Time) *StateValidator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StateValidator{secret: []byte(secret), now: now}
}

// Validate returns the token's nonce when every check passes. The checks
// run in order: presence, byte equality with the cookie, signature, expiry.
// A token validated at exactly issued+TTL is already expired.
func (v *StateValidator) Validate(receivedState, cookieState string) (string, error) {
	if receivedState == "" || cookieState == "" {
		return "", ErrMissingState
	}
	if receivedState != cookieState {
		return "", ErrStateMismatch
	}

	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(receivedState, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuerName),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrExpiredState
		default:
			// Malformed payloads and issuer mismatches are indistinguishable
			// from tampering on the caller side.
			return "", ErrInvalidSignature
		}
	}
	return claims.Nonce, nil
}
