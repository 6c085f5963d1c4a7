package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	apiHandler "github.com/fastygo/banking/api/handler"
	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/internal/app"
	"github.com/fastygo/banking/internal/config"
	"github.com/fastygo/banking/internal/router"
	"github.com/fastygo/banking/internal/services/lifecycle"
	"github.com/fastygo/banking/pkg/logger"
)

func main() {
	cfg, err := config.Load(config.ServiceAccount)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.App.Service,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.Listen(context.Background())
	defer cancel()

	rt, err := app.Bootstrap(appCtx, cfg, zapLogger, manager)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("bootstrap failed", zap.Error(err))
	}

	repo, outbox := rt.AccountRepositories()
	accounts, err := app.NewAccountContext(cfg, rt.Deps(), repo, outbox)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("account context failed", zap.Error(err))
	}
	if err := rt.ConnectBroker(appCtx, accounts.Pipeline, wire.ContextTransaction); err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("broker connection failed", zap.Error(err))
	}
	rt.StartPipelines(accounts.Pipeline)

	rt.Serve(appCtx, router.Handlers{
		Account: apiHandler.NewAccountHandler(accounts.Service, rt.Adapter(), zapLogger),
	})

	if err := rt.Wait(appCtx, cancel); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
