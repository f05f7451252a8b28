package whoop

import (
	"context"
	"errors"
	"time"

	domainwhoop "github.com/scuzi-app/connect-gateway/internal/domain/whoop"
	"github.com/scuzi-app/connect-gateway/internal/oauth"
)

var ErrMissingCode = errors.New("missing authorization code")

type Config struct {
	ClientID     string
	ClientSecret string
	StateSecret  string
	AuthURL      string
	RedirectURI  string
	Scopes       []string
	StateTTL     time.Duration
	Now          func() time.Time
}

type Usecase struct {
	tokens    domainwhoop.TokenRepo
	provider  oauth.ProviderClient
	issuer    *oauth.StateIssuer
	validator *oauth.StateValidator
	cfg       Config
}

func NewUsecase(tokens domainwhoop.TokenRepo, provider oauth.ProviderClient, cfg Config) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{
		tokens:    tokens,
		provider:  provider,
		issuer:    oauth.NewStateIssuer(cfg.ClientID, cfg.StateSecret, cfg.StateTTL, cfg.Now),
		validator: oauth.NewStateValidator(cfg.StateSecret, cfg.Now),
		cfg:       cfg,
	}
}

// StateTTL is exposed so the handler can give the state cookie the exact
// lifetime of the signed token.
func (u *Usecase) StateTTL() time.Duration { return u.cfg.StateTTL }

type ConnectOutput struct {
	AuthURL     string
	State       string
	RedirectURI string
}

// Connect mints a state token and builds the provider authorization URL.
// The caller places the state into the browser cookie.
func (u *Usecase) Connect() (*ConnectOutput, error) {
	state, err := u.issuer.Issue()
	if err != nil {
		return nil, err
	}
	authURL, err := oauth.BuildAuthURL(u.cfg.AuthURL, u.cfg.ClientID, u.cfg.RedirectURI, u.cfg.Scopes, state)
	if err != nil {
		return nil, err
	}
	return &ConnectOutput{AuthURL: authURL, State: state, RedirectURI: u.cfg.RedirectURI}, nil
}

// Callback validates the echoed state against the cookie copy, exchanges
// the authorization code and persists the resulting tokens. Validation
// failures are returned before any provider or store call.
func (u *Usecase) Callback(ctx context.Context, userID, code, receivedState, cookieState string) (*domainwhoop.TokenRecord, error) {
	if _, err := u.validator.Validate(receivedState, cookieState); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, ErrMissingCode
	}

	tok, err := u.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	rec := &domainwhoop.TokenRecord{
		UserID:      userID,
		AccessToken: tok.AccessToken,
		ExpiresAt:   u.cfg.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		rec.RefreshToken = &rt
	}
	if _, err := u.tokens.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (u *Usecase) GetTokens(ctx context.Context, userID string) (*domainwhoop.TokenRecord, error) {
	return u.tokens.Get(ctx, userID)
}

// UpsertTokens validates expiresAt before the store is touched.
func (u *Usecase) UpsertTokens(ctx context.Context, userID, accessToken string, refreshToken *string, expiresAt string) (*domainwhoop.TokenRecord, bool, error) {
	exp, err := parseExpiresAt(expiresAt)
	if err != nil {
		return nil, false, err
	}
	rec := &domainwhoop.TokenRecord{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exp,
	}
	created, err := u.tokens.Upsert(ctx, rec)
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// RefreshTokens rotates the access token for an existing record; the
// stored refresh token is left as is.
func (u *Usecase) RefreshTokens(ctx context.Context, userID, accessToken, expiresAt string) (*domainwhoop.TokenRecord, error) {
	exp, err := parseExpiresAt(expiresAt)
	if err != nil {
		return nil, err
	}
	return u.tokens.UpdateAccess(ctx, userID, accessToken, exp)
}

func parseExpiresAt(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domainwhoop.ErrInvalidExpiresAt
	}
	return t, nil
}
