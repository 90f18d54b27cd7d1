package gate

import (
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/storage"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"gate",
		fx.Provide(func(kv storage.KV, logger *zap.Logger) *Gate {
			return New(kv, logger)
		}),
		fx.Invoke(func(lc fx.Lifecycle, g *Gate) {
			lc.Append(fx.Hook{OnStart: g.Load})
		}),
	)
}
