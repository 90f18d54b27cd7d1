package session

import (
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/storage"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"session",
		fx.Provide(
			func(kv storage.KV, logger *zap.Logger) *Store {
				return New(kv, logger)
			},
			func(s *Store) api.Credentials { return s },
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Store) {
			lc.Append(fx.Hook{OnStart: s.Load})
		}),
	)
}
