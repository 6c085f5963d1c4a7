// Command bank-local runs both bounded contexts in one process on memory storage. The
// contexts exchange events through their durable channels instead of a broker.
package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	apiHandler "github.com/fastygo/banking/api/handler"
	"github.com/fastygo/banking/internal/app"
	"github.com/fastygo/banking/internal/config"
	"github.com/fastygo/banking/internal/router"
	"github.com/fastygo/banking/internal/services/lifecycle"
	"github.com/fastygo/banking/pkg/logger"
)

func main() {
	cfg, err := config.Load(config.ServiceLocal)
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

	accountRepo, accountOutbox := rt.AccountRepositories()
	accounts, err := app.NewAccountContext(cfg.ForContext(config.ServiceAccount), rt.Deps(), accountRepo, accountOutbox)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("account context failed", zap.Error(err))
	}
	txRepo, views, txOutbox := rt.TransactionRepositories()
	transactions, err := app.NewTransactionContext(cfg.ForContext(config.ServiceTransaction), rt.Deps(), txRepo, views, txOutbox)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("transaction context failed", zap.Error(err))
	}

	app.Link(accounts, transactions)
	rt.StartPipelines(accounts.Pipeline, transactions.Pipeline)

	adapter := rt.Adapter()
	rt.Serve(appCtx, router.Handlers{
		Account:     apiHandler.NewAccountHandler(accounts.Service, adapter, zapLogger),
		Transaction: apiHandler.NewTransactionHandler(transactions.Service, adapter, zapLogger),
	})

	if err := rt.Wait(appCtx, cancel); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
