package internal

import (
	"context"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/cli"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/gate"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/invoices"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/logging"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/session"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/siiquery"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/storage"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Run() error {
	var runner *cli.Runner

	app := fx.New(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		logging.Module(),
		storage.Module(),
		gate.Module(),
		session.Module(),
		api.Module(),
		invoices.Module(),
		siiquery.Module(),
		cli.Module(),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	return runner.Execute()
}
