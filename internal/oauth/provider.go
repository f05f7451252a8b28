package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenResponse is the provider's answer to a grant request.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ProviderClient covers the outbound calls to the Whoop token endpoint.
type ProviderClient interface {
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)
	RefreshAccess(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

type ProviderConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// HTTPProviderClient is the default HTTP implementation.
type HTTPProviderClient struct {
	httpClient *http.Client
	cfg        ProviderConfig
}

func NewHTTPProviderClient(client *http.Client, cfg ProviderConfig) *HTTPProviderClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProviderClient{httpClient: client, cfg: cfg}
}

// ExchangeCode trades an authorization code for access/refresh tokens.
func (c *HTTPProviderClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.cfg.RedirectURI)
	return c.post(ctx, data)
}

// RefreshAccess trades a refresh token for a new access token.
func (c *HTTPProviderClient) RefreshAccess(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	return c.post(ctx, data)
}

func (c *HTTPProviderClient) post(ctx context.Context, data url.Values) (*TokenResponse, error) {
	if strings.TrimSpace(c.cfg.TokenURL) == "" {
		return nil, fmt.Errorf("token url missing")
	}
	data.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		data.Set("client_secret", c.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token grant failed: status=%d", resp.StatusCode)
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tok, nil
}
