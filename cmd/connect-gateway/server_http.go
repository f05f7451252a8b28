package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/scuzi-app/connect-gateway/internal/config/connect-gateway"
	"github.com/scuzi-app/connect-gateway/internal/middleware"
	"github.com/scuzi-app/connect-gateway/internal/oauth"
	"github.com/scuzi-app/connect-gateway/internal/obs"
	pg "github.com/scuzi-app/connect-gateway/internal/repository/postgres"
	whoopsvc "github.com/scuzi-app/connect-gateway/internal/services/connect-gateway/whoop"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB) *http.Server {
	tokenRepo := pg.NewTokenRepo(db)

	provider := oauth.NewHTTPProviderClient(nil, oauth.ProviderConfig{
		TokenURL:     cfg.Whoop.TokenURL,
		ClientID:     cfg.Whoop.ClientID,
		ClientSecret: cfg.Whoop.ClientSecret,
		RedirectURI:  cfg.Whoop.RedirectURI,
	})

	uc := whoopsvc.NewUsecase(tokenRepo, provider, whoopsvc.Config{
		ClientID:     cfg.Whoop.ClientID,
		ClientSecret: cfg.Whoop.ClientSecret,
		StateSecret:  cfg.Whoop.StateSecret,
		AuthURL:      cfg.Whoop.AuthURL,
		RedirectURI:  cfg.Whoop.RedirectURI,
		Scopes:       cfg.Whoop.Scopes,
		StateTTL:     cfg.Whoop.StateTTL,
	})

	handler := whoopsvc.NewHandler(logger, uc, whoopsvc.CookieOpts{
		Domain: cfg.Whoop.CookieDomain,
		Secure: cfg.Whoop.CookieSecure || cfg.App.Env == "prod",
	}, cfg.Whoop.FrontendURL)

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	handler.Register(r)

	r.GET("/metrics", gin.WrapH(obs.MetricsHandler()))
	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			c.String(http.StatusServiceUnavailable, "unhealthy: db")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(r, "connect-gateway"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}
