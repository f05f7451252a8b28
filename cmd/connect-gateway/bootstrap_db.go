package main

import (
	"context"

	config "github.com/scuzi-app/connect-gateway/internal/config/connect-gateway"
	pg "github.com/scuzi-app/connect-gateway/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.New(ctx, cfg.DB)
}
