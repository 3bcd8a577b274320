package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/wire"

	"github.com/kyungseopkim/algorithm-trading/internal/api"
	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/config"
	"github.com/kyungseopkim/algorithm-trading/internal/gateway"
	"github.com/kyungseopkim/algorithm-trading/internal/historical"
	"github.com/kyungseopkim/algorithm-trading/internal/version"
)

// App holds the dependencies of a historical run, built by Wire.
type App struct {
	Config  *config.Config
	Fetcher *historical.Fetcher
	Logger  *slog.Logger
}

var providerSet = wire.NewSet(
	provideCredentials,
	provideAPIClient,
	provideGateway,
	provideFetcher,
	wire.Struct(new(App), "Config", "Fetcher", "Logger"),
)

func provideCredentials(cfg *config.Config) auth.Credentials {
	return cfg.Credentials()
}

func provideAPIClient(cfg *config.Config, creds auth.Credentials, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.API.DataURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.Retries(), time.Second),
		api.WithUserAgent(version.UserAgent()),
	)
}

func provideGateway(cfg *config.Config, client *api.Client, creds auth.Credentials) (gateway.HistoricalGateway, error) {
	switch strings.ToLower(cfg.Historical.Gateway) {
	case "rest":
		return gateway.NewREST(client, ""), nil
	case "sdk":
		return gateway.NewSDK(creds, cfg.API.DataURL), nil
	default:
		return nil, fmt.Errorf("unknown gateway %q (want rest or sdk)", cfg.Historical.Gateway)
	}
}

func provideFetcher(cfg *config.Config, gw gateway.HistoricalGateway, logger *slog.Logger) *historical.Fetcher {
	opts := []historical.Option{
		historical.WithLogger(logger),
		historical.WithConcurrency(cfg.Historical.Concurrency),
		historical.WithPageDelay(cfg.Historical.PageDelay),
		historical.WithKeepGoing(true),
	}
	if retries := cfg.Historical.Retries; retries > 0 {
		opts = append(opts, historical.WithResume(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries))
		}))
	}
	return historical.New(gw, opts...)
}
