package logging

import (
	"context"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module decorates the root logger, so it is not wrapped in fx.Module: a
// module-scoped decorator would only reach this module.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(func(cfg config.Config) (*File, error) {
			return OpenLogFile(cfg.LogFile)
		}),
		fx.Decorate(func(base *zap.Logger, cfg config.Config, file *File) *zap.Logger {
			return AttachFileLogger(base, file, cfg.Debug)
		}),
		fx.Invoke(func(lc fx.Lifecycle, file *File) {
			if file == nil {
				return
			}
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return file.Close()
				},
			})
		}),
	)
}
