package transaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/usecase"
)

// CreateTransactionInput is the request to move Amount between two accounts.
type CreateTransactionInput struct {
	CorrelationID string
	FromAccountID domain.AggregateID
	ToAccountID   domain.AggregateID
	Amount        decimal.Decimal
}

// Creator opens transactions only between accounts known to exist.
type Creator struct {
	handler *Handler
	views   repository.AccountViewRepository
	locks   usecase.LockProvider
}

func NewCreator(handler *Handler, views repository.AccountViewRepository, locks usecase.LockProvider) *Creator {
	return &Creator{handler: handler, views: views, locks: locks}
}

// Create holds both account locks, taken in hash order, while it checks the accounts
// and stores the new transaction.
func (c *Creator) Create(ctx context.Context, in CreateTransactionInput) (*transaction.BankTransaction, error) {
	if in.FromAccountID.IsBlank() || in.ToAccountID.IsBlank() {
		return nil, domain.ErrBlankAggregateID
	}
	if in.FromAccountID == in.ToAccountID {
		return nil, transaction.ErrSameAccount
	}
	if !in.Amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount
	}

	first, second := lockOrder(in.FromAccountID, in.ToAccountID)

	var created *transaction.BankTransaction
	err := c.locks.WithLock(ctx, usecase.AccountLockKey(first), func(ctx context.Context) error {
		return c.locks.WithLock(ctx, usecase.AccountLockKey(second), func(ctx context.Context) error {
			if err := c.requireAccounts(ctx, in.FromAccountID, in.ToAccountID); err != nil {
				return err
			}
			tx, err := c.handler.Handle(ctx, transaction.CreateBankTransaction{
				TransactionID: domain.NewAggregateID(),
				CorrelationID: strings.TrimSpace(in.CorrelationID),
				FromAccountID: in.FromAccountID,
				ToAccountID:   in.ToAccountID,
				Amount:        in.Amount,
			})
			created = tx
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Creator) requireAccounts(ctx context.Context, ids ...domain.AggregateID) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := c.views.FindByID(gctx, id)
			if errors.Is(err, domain.ErrAccountNotFound) {
				return domain.Invalidf("account %s does not exist", id)
			}
			return err
		})
	}
	return g.Wait()
}

// lockOrder sorts two account ids by the sha256 of their value so every caller takes
// the pair in the same order.
func lockOrder(a, b domain.AggregateID) (domain.AggregateID, domain.AggregateID) {
	if hashID(a) <= hashID(b) {
		return a, b
	}
	return b, a
}

func hashID(id domain.AggregateID) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
