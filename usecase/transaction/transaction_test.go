package transaction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/internal/config"
	infraredis "github.com/fastygo/banking/internal/infrastructure/redis"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/repository/memory"
	"github.com/fastygo/banking/usecase"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingLocks struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocks) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return fn(ctx)
}

type fixture struct {
	txs      *memory.TransactionStore
	views    *memory.AccountViewStore
	locks    *recordingLocks
	handler  *Handler
	service  *Service
	consumer *Consumer
}

func newFixture() *fixture {
	txs := memory.NewTransactionStore()
	views := memory.NewAccountViewStore()
	locks := &recordingLocks{}
	handler := NewHandler(txs, locks, domain.FixedClock(now), nil, nil)
	return &fixture{
		txs:      txs,
		views:    views,
		locks:    locks,
		handler:  handler,
		service:  NewService(handler, NewCreator(handler, views, locks), txs),
		consumer: NewConsumer(handler, NewTranslator(txs), NewAccountProjector(views), nil),
	}
}

func (f *fixture) consume(t *testing.T, evt account.Event) error {
	t.Helper()
	env, err := wire.EncodeAccountEvent(evt)
	require.NoError(t, err)
	body, err := env.Marshal()
	require.NoError(t, err)
	return f.consumer.Consume(context.Background(), usecase.Message{ID: env.ID, Body: body})
}

func (f *fixture) account(t *testing.T, id domain.AggregateID, balance string) {
	t.Helper()
	require.NoError(t, f.consume(t, account.AccountCreated{
		AccountID: id,
		Email:     id.String() + "@bank.test",
		Balance:   decimal.RequireFromString(balance),
		UpdatedAt: now,
	}))
}

func (f *fixture) pending(t *testing.T) []string {
	t.Helper()
	msgs, err := f.txs.Outbox().Pending(context.Background(), 100)
	require.NoError(t, err)
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		names = append(names, m.EventName)
	}
	return names
}

func (f *fixture) transfer(t *testing.T) *transaction.BankTransaction {
	t.Helper()
	f.account(t, "acc-a", "1000.00")
	f.account(t, "acc-b", "500.00")
	tx, err := f.service.CreateTransaction(context.Background(), "acc-a", "acc-b", "300.00", "")
	require.NoError(t, err)
	return tx
}

func (f *fixture) status(t *testing.T, id domain.AggregateID) transaction.Status {
	t.Helper()
	tx, err := f.txs.FindByID(context.Background(), id)
	require.NoError(t, err)
	return tx.Status
}

func TestProjectorMaintainsAccountViews(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.account(t, "acc-a", "1000.00")

	require.NoError(t, f.consume(t, account.MoneyWithdrawn{
		AccountID: "acc-a", Amount: decimal.NewFromInt(100), Balance: decimal.RequireFromString("900.00"), UpdatedAt: now.Add(time.Second),
	}))
	require.NoError(t, f.consume(t, account.MoneyDeposited{
		AccountID: "acc-a", Amount: decimal.NewFromInt(1), Balance: decimal.RequireFromString("1001.00"), UpdatedAt: now.Add(-time.Second),
	}))

	view, err := f.views.FindByID(ctx, "acc-a")
	require.NoError(t, err)
	assert.Equal(t, "900.00", view.Balance.StringFixed(2))
	assert.Equal(t, "acc-a@bank.test", view.Email)
}

func TestCreateTransaction(t *testing.T) {
	f := newFixture()
	tx := f.transfer(t)

	assert.Equal(t, transaction.StatusCreated, tx.Status)
	assert.Equal(t, tx.ID.String(), tx.CorrelationID)
	assert.Equal(t, "300.00", tx.Amount.StringFixed(2))
	assert.Equal(t, []string{transaction.EventCreated}, f.pending(t))

	require.Len(t, f.locks.keys, 3)
	first, second := lockOrder("acc-a", "acc-b")
	assert.Equal(t, []string{
		usecase.AccountLockKey(first),
		usecase.AccountLockKey(second),
		usecase.TransactionLockKey(tx.ID),
	}, f.locks.keys)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.account(t, "acc-a", "10")

	_, err := f.service.CreateTransaction(ctx, "acc-a", "ghost", "1", "")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = f.service.CreateTransaction(ctx, "acc-a", "acc-a", "1", "")
	assert.ErrorIs(t, err, transaction.ErrSameAccount)

	_, err = f.service.CreateTransaction(ctx, "acc-a", "acc-b", "-5", "")
	assert.ErrorIs(t, err, domain.ErrNonPositiveAmount)

	_, err = f.service.CreateTransaction(ctx, "", "acc-b", "5", "")
	assert.ErrorIs(t, err, domain.ErrBlankAggregateID)

	assert.Empty(t, f.pending(t))
}

func TestLockOrderIsSymmetric(t *testing.T) {
	a1, b1 := lockOrder("x", "y")
	a2, b2 := lockOrder("y", "x")
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestDuplicateWithdrawalStartedAdvancesOnce(t *testing.T) {
	f := newFixture()
	tx := f.transfer(t)
	started := account.TransferWithdrawalStarted{
		AccountID: "acc-a", TransactionID: tx.ID, Amount: tx.Amount,
		Balance: decimal.RequireFromString("700.00"), UpdatedAt: now,
	}

	require.NoError(t, f.consume(t, started))
	require.NoError(t, f.consume(t, started))

	stored, err := f.txs.FindByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusWithdrawValidated, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, []string{transaction.EventCreated, transaction.EventMoneyWithdrawn}, f.pending(t))
}

func TestHappyPathFinishes(t *testing.T) {
	f := newFixture()
	tx := f.transfer(t)

	require.NoError(t, f.consume(t, account.TransferWithdrawalStarted{AccountID: "acc-a", TransactionID: tx.ID, Amount: tx.Amount, Balance: decimal.NewFromInt(700), UpdatedAt: now}))
	require.NoError(t, f.consume(t, account.TransferDepositStarted{AccountID: "acc-b", TransactionID: tx.ID, Amount: tx.Amount, Balance: decimal.NewFromInt(800), UpdatedAt: now}))
	require.NoError(t, f.consume(t, account.TransactionFinished{AccountID: "acc-a", TransactionID: tx.ID, UpdatedAt: now}))
	require.NoError(t, f.consume(t, account.TransactionFinished{AccountID: "acc-b", TransactionID: tx.ID, UpdatedAt: now}))

	assert.Equal(t, transaction.StatusFinished, f.status(t, tx.ID))
	assert.Equal(t, []string{
		transaction.EventCreated, transaction.EventMoneyWithdrawn, transaction.EventMoneyDeposited, transaction.EventFinished,
	}, f.pending(t))

	view, err := f.views.FindByID(context.Background(), "acc-b")
	require.NoError(t, err)
	assert.Equal(t, "800", view.Balance.String())
}

func TestFinishedForUnknownTransactionIsIgnored(t *testing.T) {
	f := newFixture()
	assert.NoError(t, f.consume(t, account.TransactionFinished{AccountID: "acc-a", TransactionID: "ghost", UpdatedAt: now}))
}

func TestRejectionCompensates(t *testing.T) {
	f := newFixture()
	tx := f.transfer(t)

	require.NoError(t, f.consume(t, account.TransferWithdrawalStarted{AccountID: "acc-a", TransactionID: tx.ID, Amount: tx.Amount, Balance: decimal.NewFromInt(700), UpdatedAt: now}))
	require.NoError(t, f.consume(t, account.TransferRejected{AccountID: "acc-b", TransactionID: tx.ID, Step: account.StepDeposit, Reason: "bank account not found", UpdatedAt: now}))

	stored, err := f.txs.FindByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, stored.Status)
	assert.Equal(t, transaction.StatusWithdrawValidated, stored.FailedAt)
	assert.Equal(t, "deposit rejected: bank account not found", stored.FailureReason)

	require.NoError(t, f.consume(t, account.TransferWithdrawalRolledBack{AccountID: "acc-a", TransactionID: tx.ID, Amount: tx.Amount, Reverted: true, Balance: decimal.NewFromInt(1000), UpdatedAt: now.Add(time.Second)}))
	assert.Equal(t, transaction.StatusRolledBack, f.status(t, tx.ID))

	assert.Equal(t, []string{
		transaction.EventCreated, transaction.EventMoneyWithdrawn,
		transaction.EventFailed, transaction.EventWithdrawRolledBack,
		transaction.EventRolledBack,
	}, f.pending(t))
}

func TestCancelThroughService(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx := f.transfer(t)

	cancelled, err := f.service.CancelTransaction(ctx, tx.ID.String(), "customer request")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusRolledBack, cancelled.Status)

	_, err = f.service.CancelTransaction(ctx, "ghost", "")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	got, err := f.service.GetTransaction(ctx, tx.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "customer request", got.FailureReason)
}

func TestStepOutOfSequenceIsTerminal(t *testing.T) {
	f := newFixture()
	tx := f.transfer(t)

	err := f.consume(t, account.TransferDepositStarted{AccountID: "acc-b", TransactionID: tx.ID, Amount: tx.Amount, Balance: decimal.NewFromInt(800), UpdatedAt: now})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidTransition))
	assert.False(t, domain.IsRetryable(err))
}

func TestConcurrentOppositeTransfersDoNotDeadlock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := goRedis.NewClient(&goRedis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := infraredis.NewLocker(client, config.LockConfig{
		TTL:           10 * time.Second,
		WaitTimeout:   5 * time.Second,
		RetryInterval: time.Millisecond,
	}, nil, nil)

	txs := memory.NewTransactionStore()
	views := memory.NewAccountViewStore()
	ctx := context.Background()
	for _, id := range []domain.AggregateID{"acc-a", "acc-b"} {
		require.NoError(t, views.Upsert(ctx, repository.AccountView{ID: id, Balance: decimal.NewFromInt(100), UpdatedAt: now}))
	}
	handler := NewHandler(txs, locker, nil, nil, nil)
	creator := NewCreator(handler, views, locker)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		from, to := domain.AggregateID("acc-a"), domain.AggregateID("acc-b")
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := creator.Create(ctx, CreateTransactionInput{FromAccountID: from, ToAccountID: to, Amount: decimal.NewFromInt(1)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	pending, err := txs.Outbox().Pending(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, pending, 10)
}
