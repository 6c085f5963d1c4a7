package app

import (
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/internal/config"
	"github.com/fastygo/banking/internal/services"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/usecase"
	txuc "github.com/fastygo/banking/usecase/transaction"
)

// TransactionContext is the wired bank-transaction bounded context.
type TransactionContext struct {
	Service  *txuc.Service
	Handler  *txuc.Handler
	Pipeline *Pipeline
}

func NewTransactionContext(
	cfg *config.Config,
	deps Deps,
	repo repository.TransactionRepository,
	views repository.AccountViewRepository,
	outbox repository.OutboxRepository,
) (*TransactionContext, error) {
	handler := txuc.NewHandler(repo, deps.Locks, domain.SystemClock{}, deps.Metrics, deps.Logger)
	pipeline, err := newPipeline(cfg, deps, outbox, func(usecase.Publisher) services.Consumer {
		return txuc.NewConsumer(handler, txuc.NewTranslator(repo), txuc.NewAccountProjector(views), deps.Logger)
	})
	if err != nil {
		return nil, err
	}
	return &TransactionContext{
		Service:  txuc.NewService(handler, txuc.NewCreator(handler, views, deps.Locks), repo),
		Handler:  handler,
		Pipeline: pipeline,
	}, nil
}
