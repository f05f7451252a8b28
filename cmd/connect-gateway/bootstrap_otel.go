package main

import (
	"context"

	config "github.com/scuzi-app/connect-gateway/internal/config/connect-gateway"
	"github.com/scuzi-app/connect-gateway/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, obs.OTELConfig{
		Enable:      cfg.OTEL.Enable,
		Endpoint:    cfg.OTEL.OTLPEndpoint,
		ServiceName: cfg.OTEL.ServiceName,
		SampleRatio: cfg.OTEL.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error { return closer.Shutdown(ctx) }, nil
}
