package oauth

import (
	"errors"
	"net/url"
	"strings"
)

// BuildAuthURL composes the provider authorization URL. Scopes are joined
// with spaces; an empty scope list yields an empty scope parameter rather
// than an error.
func BuildAuthURL(endpoint, clientID, redirectURI string, scopes []string, state string) (string, error) {
	if endpoint == "" || clientID == "" || redirectURI == "" || state == "" {
		return "", errors.New("auth url: missing required input")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
