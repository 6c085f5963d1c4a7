package account

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/usecase"
)

// Handler applies account commands under the account lock.
type Handler struct {
	repo    repository.AccountRepository
	locks   usecase.LockProvider
	clock   domain.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHandler(repo repository.AccountRepository, locks usecase.LockProvider, clock domain.Clock, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, locks: locks, clock: clock, metrics: m, logger: logger}
}

// Handle loads the account, applies cmd and stores the result together with the
// emitted events. A replayed command returns the stored account without writing.
func (h *Handler) Handle(ctx context.Context, cmd account.Command) (*account.BankAccount, error) {
	if cmd == nil {
		return nil, domain.ErrInvalidPayload
	}
	started := time.Now()

	var result *account.BankAccount
	err := h.locks.WithLock(ctx, lockKey(cmd), func(ctx context.Context) error {
		loaded, err := h.load(ctx, cmd)
		if err != nil {
			return err
		}

		agg := account.NewAggregate(loaded)
		if err := agg.Handle(cmd, h.clock.Now()); err != nil {
			return err
		}
		if !agg.Changed() {
			result = &loaded
			return nil
		}

		saved, err := h.repo.Upsert(ctx, agg)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	h.metrics.CommandHandled(wire.ContextAccount, cmd.CommandName(), err, time.Since(started))

	if err != nil {
		h.logger.Debug("account command rejected",
			zap.String("command", cmd.CommandName()),
			zap.String("aggregate_id", cmd.AggregateID().String()),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (h *Handler) load(ctx context.Context, cmd account.Command) (account.BankAccount, error) {
	if create, ok := cmd.(account.CreateAccount); ok {
		exists, err := h.repo.ExistsByEmail(ctx, create.Email)
		if err != nil {
			return account.BankAccount{}, err
		}
		if exists {
			return account.BankAccount{}, domain.ErrEmailAlreadyExists
		}
	}

	loaded, err := h.repo.FindByID(ctx, cmd.AggregateID())
	switch {
	case err == nil:
		return *loaded, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return account.BankAccount{}, nil
	default:
		return account.BankAccount{}, err
	}
}

// lockKey serializes creation on the email and everything else on the account id.
func lockKey(cmd account.Command) string {
	if create, ok := cmd.(account.CreateAccount); ok {
		return usecase.AccountEmailLockKey(create.Email)
	}
	return usecase.AccountLockKey(cmd.AggregateID())
}
