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
	cfg, err := config.Load(config.ServiceTransaction)
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

	repo, views, outbox := rt.TransactionRepositories()
	transactions, err := app.NewTransactionContext(cfg, rt.Deps(), repo, views, outbox)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("transaction context failed", zap.Error(err))
	}
	if err := rt.ConnectBroker(appCtx, transactions.Pipeline, wire.ContextAccount); err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("broker connection failed", zap.Error(err))
	}
	rt.StartPipelines(transactions.Pipeline)

	rt.Serve(appCtx, router.Handlers{
		Transaction: apiHandler.NewTransactionHandler(transactions.Service, rt.Adapter(), zapLogger),
	})

	if err := rt.Wait(appCtx, cancel); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
