package storage

import (
	"context"
	"strings"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const redisKeyPrefix = "facturas:"

func Module() fx.Option {
	return fx.Module(
		"storage",
		fx.Provide(New),
	)
}

// New picks the backend: redis when a URL is configured, otherwise the state
// file, otherwise process memory.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (KV, error) {
	logger = logger.Named("storage")

	if url := strings.TrimSpace(cfg.StateRedisURL); url != "" {
		kv, err := NewRedis(url, redisKeyPrefix)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStart: kv.Ping,
			OnStop: func(_ context.Context) error {
				return kv.Close()
			},
		})
		logger.Debug("using redis state backend")
		return kv, nil
	}

	if path := strings.TrimSpace(cfg.StateFile); path != "" {
		logger.Debug("using file state backend", zap.String("path", path))
		return NewFile(path), nil
	}

	logger.Warn("no state backend configured; session will not survive restarts")
	return NewMemory(), nil
}
