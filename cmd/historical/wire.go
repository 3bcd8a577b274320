//go:build wireinject
// +build wireinject

package main

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/kyungseopkim/algorithm-trading/internal/config"
)

// InitializeApp builds App from a validated config via Wire.
func InitializeApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	wire.Build(providerSet)
	return nil, nil
}
