package siiquery

import (
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/gate"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"siiquery",
		fx.Provide(func(client *api.Client, g *gate.Gate, logger *zap.Logger) *Service {
			return NewService(client, g, nil, logger)
		}),
	)
}
