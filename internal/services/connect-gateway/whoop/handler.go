package whoop

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainwhoop "github.com/scuzi-app/connect-gateway/internal/domain/whoop"
	"github.com/scuzi-app/connect-gateway/internal/oauth"
	"github.com/scuzi-app/connect-gateway/internal/obs"
)

const (
	stateCookieName   = "whoop_oauth_state"
	accessCookieName  = "whoop_access_token"
	refreshCookieName = "whoop_refresh_token"
	userCookieName    = "scuzi_user_id"

	// Used when no Scuzi session cookie accompanies the request.
	defaultUserID = "default"

	refreshCookieMaxAge = 30 * 24 * 3600
)

type CookieOpts struct {
	Domain string
	Secure bool
}

type Handler struct {
	log         *zap.Logger
	uc          *Usecase
	cookies     CookieOpts
	frontendURL string
}

func NewHandler(log *zap.Logger, uc *Usecase, cookies CookieOpts, frontendURL string) *Handler {
	if log == nil {
		log, _ = zap.NewProduction()
	}
	return &Handler{log: log, uc: uc, cookies: cookies, frontendURL: frontendURL}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/whoop")
	g.GET("/connect", h.Connect)
	g.GET("/callback", h.Callback)
	g.GET("/tokens", h.GetTokens)
	g.POST("/tokens", h.UpsertTokens)
	g.PUT("/tokens", h.RefreshTokens)
	g.POST("/disconnect", h.Disconnect)
}

type errorResponse struct {
	Error string `json:"error"`
}

type connectResponse struct {
	AuthURL     string `json:"authUrl"`
	RedirectURI string `json:"redirectUri"`
	Message     string `json:"message"`
}

type tokenResponse struct {
	UserID       string    `json:"userId"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken *string   `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toTokenResponse(rec *domainwhoop.TokenRecord) tokenResponse {
	return tokenResponse{
		UserID:       rec.UserID,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// Connect answers with the provider authorization URL and mirrors the
// freshly minted state token into the state cookie. Cookie max-age and the
// token's signed expiry come from the same TTL.
func (h *Handler) Connect(c *gin.Context) {
	out, err := h.uc.Connect()
	if err != nil {
		if errors.Is(err, oauth.ErrConfiguration) {
			h.log.Error("whoop connect unconfigured", zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "CONFIGURATION_ERROR"})
			return
		}
		h.log.Error("whoop connect", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
		return
	}

	h.setCookie(c, stateCookieName, out.State, int(h.uc.StateTTL().Seconds()))
	obs.ConnectStarted.Inc()

	c.JSON(http.StatusOK, connectResponse{
		AuthURL:     out.AuthURL,
		RedirectURI: out.RedirectURI,
		Message:     "Redirect the user to authUrl to connect their Whoop account.",
	})
}

// Callback completes the flow: state check, code exchange, upsert. Every
// rejection looks the same from the browser so the response carries no
// oracle about which check failed.
func (h *Handler) Callback(c *gin.Context) {
	log := obs.WithTrace(c.Request.Context(), h.log)

	cookieState, _ := c.Cookie(stateCookieName)
	h.clearCookie(c, stateCookieName)

	rec, err := h.uc.Callback(c.Request.Context(),
		userIDFromRequest(c), c.Query("code"), c.Query("state"), cookieState)
	if err != nil {
		obs.CallbackResult.WithLabelValues("error").Inc()
		log.Warn("whoop callback rejected", zap.Error(err))
		c.Redirect(http.StatusFound, h.frontendURL+"?whoop=error")
		return
	}

	h.setCookie(c, accessCookieName, rec.AccessToken, int(time.Until(rec.ExpiresAt).Seconds()))
	if rec.RefreshToken != nil {
		h.setCookie(c, refreshCookieName, *rec.RefreshToken, refreshCookieMaxAge)
	}

	obs.CallbackResult.WithLabelValues("connected").Inc()
	log.Info("whoop connected", zap.String("user_id", rec.UserID))
	c.Redirect(http.StatusFound, h.frontendURL+"?whoop=connected")
}

func (h *Handler) GetTokens(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "MISSING_USER_ID"})
		return
	}

	rec, err := h.uc.GetTokens(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domainwhoop.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "TOKENS_NOT_FOUND"})
			return
		}
		obs.WithTrace(c.Request.Context(), h.log).Error("whoop tokens get", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(rec))
}

type upsertRequest struct {
	UserID       string  `json:"userId"`
	AccessToken  string  `json:"accessToken"`
	RefreshToken *string `json:"refreshToken"`
	ExpiresAt    string  `json:"expiresAt"`
}

func (h *Handler) UpsertTokens(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "INVALID_BODY"})
		return
	}
	if code, ok := missingField(req.UserID, req.AccessToken, req.ExpiresAt); !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: code})
		return
	}

	rec, created, err := h.uc.UpsertTokens(c.Request.Context(),
		req.UserID, req.AccessToken, req.RefreshToken, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, domainwhoop.ErrInvalidExpiresAt) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "INVALID_EXPIRES_AT"})
			return
		}
		obs.WithTrace(c.Request.Context(), h.log).Error("whoop tokens upsert", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
		return
	}

	status := http.StatusOK
	op := "update"
	if created {
		status = http.StatusCreated
		op = "insert"
	}
	obs.TokenWrites.WithLabelValues(op).Inc()
	c.JSON(status, toTokenResponse(rec))
}

type refreshRequest struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

func (h *Handler) RefreshTokens(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "INVALID_BODY"})
		return
	}
	if code, ok := missingField(req.UserID, req.AccessToken, req.ExpiresAt); !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: code})
		return
	}

	rec, err := h.uc.RefreshTokens(c.Request.Context(), req.UserID, req.AccessToken, req.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, domainwhoop.ErrInvalidExpiresAt):
			c.JSON(http.StatusBadRequest, errorResponse{Error: "INVALID_EXPIRES_AT"})
		case errors.Is(err, domainwhoop.ErrNotFound):
			c.JSON(http.StatusNotFound, errorResponse{Error: "USER_NOT_FOUND"})
		default:
			obs.WithTrace(c.Request.Context(), h.log).Error("whoop tokens refresh", zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
		}
		return
	}
	obs.TokenWrites.WithLabelValues("refresh").Inc()
	c.JSON(http.StatusOK, toTokenResponse(rec))
}

// Disconnect clears the browser-held token cookies. The stored record is
// intentionally left alone (soft disconnect).
func (h *Handler) Disconnect(c *gin.Context) {
	h.clearCookie(c, accessCookieName)
	h.clearCookie(c, refreshCookieName)
	c.JSON(http.StatusOK, gin.H{"message": "Whoop disconnected"})
}

func missingField(userID, accessToken, expiresAt string) (string, bool) {
	switch {
	case userID == "":
		return "MISSING_USER_ID", false
	case accessToken == "":
		return "MISSING_ACCESS_TOKEN", false
	case expiresAt == "":
		return "MISSING_EXPIRES_AT", false
	}
	return "", true
}

func userIDFromRequest(c *gin.Context) string {
	if v, err := c.Cookie(userCookieName); err == nil && v != "" {
		return v
	}
	return defaultUserID
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
