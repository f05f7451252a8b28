package whoop

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scuzi-app/connect-gateway/internal/oauth"
)

const testFrontendURL = "http://fe.example"

func newTestRouter(t *testing.T, repo *memTokenRepo, provider oauth.ProviderClient, cfg Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	uc := NewUsecase(repo, provider, cfg)
	h := NewHandler(zap.NewNop(), uc, CookieOpts{}, testFrontendURL)

	r := gin.New()
	h.Register(r)
	return r
}

func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConnectSetsStateCookie(t *testing.T) {
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, testConfig())

	w := doJSON(r, http.MethodGet, "/v1/whoop/connect", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp connectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "http://api.example/v1/whoop/callback", resp.RedirectURI)
	require.NotEmpty(t, resp.Message)

	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	cookie := findCookie(t, w.Result(), "whoop_oauth_state")
	require.NotNil(t, cookie)
	require.Equal(t, state, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, "/", cookie.Path)
	// Cookie lifetime equals the signed token TTL.
	require.Equal(t, 600, cookie.MaxAge)
}

func TestConnectUnconfiguredIs500(t *testing.T) {
	cfg := testConfig()
	cfg.StateSecret = ""
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, cfg)

	w := doJSON(r, http.MethodGet, "/v1/whoop/connect", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "CONFIGURATION_ERROR")
}

func TestConnectCallbackEndToEnd(t *testing.T) {
	repo := newMemTokenRepo()
	provider := &fakeProvider{tok: &oauth.TokenResponse{
		AccessToken:  "at-e2e",
		RefreshToken: "rt-e2e",
		ExpiresIn:    3600,
	}}
	r := newTestRouter(t, repo, provider, testConfig())

	// Step 1: connect.
	w := doJSON(r, http.MethodGet, "/v1/whoop/connect", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp connectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	stateCookie := findCookie(t, w.Result(), "whoop_oauth_state")
	require.NotNil(t, stateCookie)

	// Step 2: provider redirects back with code + state; browser carries
	// the state cookie.
	req := httptest.NewRequest(http.MethodGet,
		"/v1/whoop/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "whoop_oauth_state", Value: stateCookie.Value})
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	require.Equal(t, http.StatusFound, w2.Code)
	require.Equal(t, testFrontendURL+"?whoop=connected", w2.Header().Get("Location"))
	require.Equal(t, 1, repo.upserts)

	access := findCookie(t, w2.Result(), "whoop_access_token")
	require.NotNil(t, access)
	require.Equal(t, "at-e2e", access.Value)
	refresh := findCookie(t, w2.Result(), "whoop_refresh_token")
	require.NotNil(t, refresh)
	require.Equal(t, "rt-e2e", refresh.Value)

	// The single-use state cookie is cleared.
	cleared := findCookie(t, w2.Result(), "whoop_oauth_state")
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)

	// Step 3: persisted record is readable.
	w3 := doJSON(r, http.MethodGet, "/v1/whoop/tokens?user_id=default", "")
	require.Equal(t, http.StatusOK, w3.Code)
	var rec tokenResponse
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &rec))
	require.Equal(t, "at-e2e", rec.AccessToken)
}

func TestCallbackStateMismatchIsGeneric(t *testing.T) {
	repo := newMemTokenRepo()
	provider := &fakeProvider{tok: &oauth.TokenResponse{AccessToken: "at"}}
	r := newTestRouter(t, repo, provider, testConfig())

	w := doJSON(r, http.MethodGet, "/v1/whoop/connect", "")
	var resp connectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	u, _ := url.Parse(resp.AuthURL)
	state := u.Query().Get("state")

	// Cookie holds a different value than the echoed state.
	req := httptest.NewRequest(http.MethodGet,
		"/v1/whoop/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "whoop_oauth_state", Value: "something-else"})
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	require.Equal(t, http.StatusFound, w2.Code)
	require.Equal(t, testFrontendURL+"?whoop=error", w2.Header().Get("Location"))
	require.Equal(t, 0, provider.calls)
	require.Equal(t, 0, repo.upserts)
}

func TestCallbackWithoutCookieIsGeneric(t *testing.T) {
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, testConfig())

	w := doJSON(r, http.MethodGet, "/v1/whoop/callback?code=x&state=y", "")
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, testFrontendURL+"?whoop=error", w.Header().Get("Location"))
}

func TestGetTokens(t *testing.T) {
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, testConfig())

	w := doJSON(r, http.MethodGet, "/v1/whoop/tokens", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "MISSING_USER_ID")

	w = doJSON(r, http.MethodGet, "/v1/whoop/tokens?user_id=nobody", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "TOKENS_NOT_FOUND")
}

func TestUpsertTokensInsertThenUpdate(t *testing.T) {
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, testConfig())

	body := `{"userId":"u1","accessToken":"at-1","refreshToken":"rt-1","expiresAt":"2030-01-01T00:00:00Z"}`
	w := doJSON(r, http.MethodPost, "/v1/whoop/tokens", body)
	require.Equal(t, http.StatusCreated, w.Code)

	body = `{"userId":"u1","accessToken":"at-2","expiresAt":"2030-02-01T00:00:00Z"}`
	w = doJSON(r, http.MethodPost, "/v1/whoop/tokens", body)
	require.Equal(t, http.StatusOK, w.Code)

	var rec tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, "at-2", rec.AccessToken)
}

func TestUpsertTokensValidation(t *testing.T) {
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, testConfig())

	w := doJSON(r, http.MethodPost, "/v1/whoop/tokens",
		`{"accessToken":"at","expiresAt":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "MISSING_USER_ID")

	w = doJSON(r, http.MethodPost, "/v1/whoop/tokens",
		`{"userId":"u1","expiresAt":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "MISSING_ACCESS_TOKEN")

	w = doJSON(r, http.MethodPost, "/v1/whoop/tokens",
		`{"userId":"u1","accessToken":"at","expiresAt":"not-a-date"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_EXPIRES_AT")
}

func TestRefreshTokensEndpoint(t *testing.T) {
	repo := newMemTokenRepo()
	r := newTestRouter(t, repo, &fakeProvider{}, testConfig())

	// Invalid expiry is rejected before the store is touched.
	w := doJSON(r, http.MethodPut, "/v1/whoop/tokens",
		`{"userId":"u1","accessToken":"at","expiresAt":"not-a-date"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_EXPIRES_AT")
	require.Equal(t, 0, repo.updates)

	w = doJSON(r, http.MethodPut, "/v1/whoop/tokens",
		`{"userId":"ghost","accessToken":"at","expiresAt":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "USER_NOT_FOUND")

	body := `{"userId":"u1","accessToken":"at-1","expiresAt":"2030-01-01T00:00:00Z"}`
	require.Equal(t, http.StatusCreated,
		doJSON(r, http.MethodPost, "/v1/whoop/tokens", body).Code)

	w = doJSON(r, http.MethodPut, "/v1/whoop/tokens",
		`{"userId":"u1","accessToken":"at-next","expiresAt":"2030-06-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var rec tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, "at-next", rec.AccessToken)
	exp, err := time.Parse(time.RFC3339, "2030-06-01T00:00:00Z")
	require.NoError(t, err)
	require.True(t, rec.ExpiresAt.Equal(exp))
}

func TestDisconnectClearsTokenCookies(t *testing.T) {
	r := newTestRouter(t, newMemTokenRepo(), &fakeProvider{}, testConfig())

	w := doJSON(r, http.MethodPost, "/v1/whoop/disconnect", "")
	require.Equal(t, http.StatusOK, w.Code)

	access := findCookie(t, w.Result(), "whoop_access_token")
	require.NotNil(t, access)
	require.Less(t, access.MaxAge, 0)
	refresh := findCookie(t, w.Result(), "whoop_refresh_token")
	require.NotNil(t, refresh)
	require.Less(t, refresh.MaxAge, 0)
}

func TestCallbackUsesSessionCookieUser(t *testing.T) {
	repo := newMemTokenRepo()
	provider := &fakeProvider{tok: &oauth.TokenResponse{AccessToken: "at", ExpiresIn: 60}}
	r := newTestRouter(t, repo, provider, testConfig())

	w := doJSON(r, http.MethodGet, "/v1/whoop/connect", "")
	var resp connectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	u, _ := url.Parse(resp.AuthURL)
	state := u.Query().Get("state")

	req := httptest.NewRequest(http.MethodGet,
		"/v1/whoop/callback?code=c&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "whoop_oauth_state", Value: state})
	req.AddCookie(&http.Cookie{Name: "scuzi_user_id", Value: "user-42"})
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusFound, w2.Code)

	_, err := repo.Get(req.Context(), "user-42")
	require.NoError(t, err)
}
