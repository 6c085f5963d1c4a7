package app

import (
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/internal/config"
	"github.com/fastygo/banking/internal/services"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/usecase"
	accountuc "github.com/fastygo/banking/usecase/account"
)

// AccountContext is the wired bank-account bounded context.
type AccountContext struct {
	Service  *accountuc.Service
	Handler  *accountuc.Handler
	Pipeline *Pipeline
}

func NewAccountContext(cfg *config.Config, deps Deps, repo repository.AccountRepository, outbox repository.OutboxRepository) (*AccountContext, error) {
	clock := domain.SystemClock{}
	handler := accountuc.NewHandler(repo, deps.Locks, clock, deps.Metrics, deps.Logger)
	pipeline, err := newPipeline(cfg, deps, outbox, func(outgoing usecase.Publisher) services.Consumer {
		return accountuc.NewConsumer(handler, outgoing, clock, deps.Logger)
	})
	if err != nil {
		return nil, err
	}
	return &AccountContext{
		Service:  accountuc.NewService(handler, repo),
		Handler:  handler,
		Pipeline: pipeline,
	}, nil
}
