package invoices

import (
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/session"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"invoices",
		fx.Provide(func(client *api.Client, sess *session.Store, cfg config.Config, logger *zap.Logger) *Source {
			return NewSource(client, sess, cfg.PerPage, logger)
		}),
	)
}
