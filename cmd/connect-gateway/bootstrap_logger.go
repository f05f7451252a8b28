package main

import (
	"go.uber.org/zap"

	config "github.com/scuzi-app/connect-gateway/internal/config/connect-gateway"
	"github.com/scuzi-app/connect-gateway/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}
