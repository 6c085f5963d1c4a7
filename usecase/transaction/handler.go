package transaction

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/usecase"
)

// Handler applies transaction commands under the transaction lock.
type Handler struct {
	repo    repository.TransactionRepository
	locks   usecase.LockProvider
	clock   domain.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHandler(repo repository.TransactionRepository, locks usecase.LockProvider, clock domain.Clock, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, locks: locks, clock: clock, metrics: m, logger: logger}
}

// Handle loads the transaction, applies cmd and stores the result with its events.
func (h *Handler) Handle(ctx context.Context, cmd transaction.Command) (*transaction.BankTransaction, error) {
	if cmd == nil {
		return nil, domain.ErrInvalidPayload
	}
	started := time.Now()

	var result *transaction.BankTransaction
	err := h.locks.WithLock(ctx, usecase.TransactionLockKey(cmd.AggregateID()), func(ctx context.Context) error {
		loaded, err := h.repo.FindByID(ctx, cmd.AggregateID())
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			loaded = &transaction.BankTransaction{}
		case err != nil:
			return err
		}

		agg := transaction.NewAggregate(*loaded)
		if err := agg.Handle(cmd, h.clock.Now()); err != nil {
			return err
		}
		if !agg.Changed() {
			result = loaded
			return nil
		}

		saved, err := h.repo.Upsert(ctx, agg)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	h.metrics.CommandHandled(wire.ContextTransaction, cmd.CommandName(), err, time.Since(started))

	if err != nil {
		h.logger.Debug("transaction command rejected",
			zap.String("command", cmd.CommandName()),
			zap.String("aggregate_id", cmd.AggregateID().String()),
			zap.Error(err),
		)
		return nil, err
	}
	if result != nil && result.Status.IsTerminal() {
		h.logger.Info("transaction settled",
			zap.String("transaction_id", result.ID.String()),
			zap.String("status", result.Status.String()),
		)
	}
	return result, nil
}
