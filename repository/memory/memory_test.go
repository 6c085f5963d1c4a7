package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/repository/memory"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newAccount(t *testing.T, id domain.AggregateID, email string) *account.Aggregate {
	t.Helper()
	agg := account.NewAggregate(account.BankAccount{})
	require.NoError(t, agg.Handle(account.CreateAccount{AccountID: id, Email: email, Balance: decimal.NewFromInt(10)}, now))
	return agg
}

func TestAccountStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()

	saved, err := store.Upsert(ctx, newAccount(t, "acc-1", "One@Bank.test"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	exists, err := store.ExistsByEmail(ctx, " one@bank.test")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	agg := account.NewAggregate(*loaded)
	require.NoError(t, agg.Handle(account.DepositMoney{AccountID: "acc-1", Amount: decimal.NewFromInt(5)}, now))

	saved, err = store.Upsert(ctx, agg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)
	assert.Equal(t, "15", saved.Balance.String())

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := store.Upsert(ctx, agg)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := store.Upsert(ctx, newAccount(t, "acc-2", "one@bank.test"))
		assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
	})

	t.Run("second create with the same id conflicts", func(t *testing.T) {
		_, err := store.Upsert(ctx, newAccount(t, "acc-1", "other@bank.test"))
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := store.FindByID(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

func TestFindByIDReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	agg := newAccount(t, "acc-1", "a@bank.test")
	require.NoError(t, agg.Handle(account.DepositFromTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: decimal.NewFromInt(1)}, now))
	_, err := store.Upsert(ctx, agg)
	require.NoError(t, err)

	first, err := store.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	delete(first.OpenedTransactions, "tx-1")

	second, err := store.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, second.OpenedTransactions.Has("tx-1"))
}

func TestOutboxFollowsUpserts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	agg := newAccount(t, "acc-1", "a@bank.test")
	require.NoError(t, agg.Handle(account.DepositMoney{AccountID: "acc-1", Amount: decimal.NewFromInt(1)}, now))
	_, err := store.Upsert(ctx, agg)
	require.NoError(t, err)

	pending, err := store.Outbox().Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, account.EventAccountCreated, pending[0].EventName)
	assert.Equal(t, account.EventMoneyDeposited, pending[1].EventName)
	assert.Equal(t, wire.ContextAccount, pending[0].Context)

	env, err := wire.UnmarshalEnvelope(pending[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, pending[1].ID, env.ID)

	require.NoError(t, store.Outbox().MarkPublished(ctx, []string{pending[0].ID}))
	pending, err = store.Outbox().Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, account.EventMoneyDeposited, pending[0].EventName)
}

func TestFailedUpsertWritesNoOutbox(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	agg := transaction.NewAggregate(transaction.BankTransaction{})
	require.NoError(t, agg.Handle(transaction.CreateBankTransaction{TransactionID: "tx-1", FromAccountID: "a", ToAccountID: "b", Amount: decimal.NewFromInt(3)}, now))
	agg.Transaction.Version = 4

	_, err := store.Upsert(ctx, agg)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	pending, err := store.Outbox().Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = store.FindByID(ctx, "tx-1")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestAccountViewStoreKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountViewStore()

	require.NoError(t, store.Upsert(ctx, repository.AccountView{ID: "acc-1", Email: "a@bank.test", Balance: decimal.NewFromInt(10), UpdatedAt: now}))
	require.NoError(t, store.Upsert(ctx, repository.AccountView{ID: "acc-1", Balance: decimal.NewFromInt(99), UpdatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Upsert(ctx, repository.AccountView{ID: "acc-1", Balance: decimal.NewFromInt(7), UpdatedAt: now.Add(time.Minute)}))

	view, err := store.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "7", view.Balance.String())
	assert.Equal(t, "a@bank.test", view.Email)

	_, err = store.FindByID(ctx, "acc-2")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
