//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/domain/transaction"
	infrapg "github.com/fastygo/banking/internal/infrastructure/postgres"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/repository/postgres"
)

// Both schemas share one database here; the outbox table is identical in both.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is not set")
	}
	require.NoError(t, infrapg.Migrate(dsn, "../../assets/migrations/account", "account_migrations", nil))
	require.NoError(t, infrapg.Migrate(dsn, "../../assets/migrations/transaction", "transaction_migrations", nil))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	repo := postgres.NewAccountRepository(pool)
	outbox := postgres.NewOutboxRepository(pool)

	id := domain.NewAggregateID()
	email := id.String() + "@bank.test"
	now := time.Now().UTC().Truncate(time.Millisecond)

	agg := account.NewAggregate(account.BankAccount{})
	require.NoError(t, agg.Handle(account.CreateAccount{AccountID: id, Email: email, Balance: decimal.RequireFromString("1000.50")}, now))
	saved, err := repo.Upsert(ctx, agg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	loaded, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1000.50", loaded.Balance.StringFixed(2))

	next := account.NewAggregate(*loaded)
	require.NoError(t, next.Handle(account.WithdrawForTransfer{AccountID: id, TransactionID: "tx-1", Amount: decimal.NewFromInt(100)}, now))
	_, err = repo.Upsert(ctx, next)
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, next)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	exists, err := repo.ExistsByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := account.NewAggregate(account.BankAccount{})
	require.NoError(t, dup.Handle(account.CreateAccount{AccountID: domain.NewAggregateID(), Email: email}, now))
	_, err = repo.Upsert(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	pending, err := outbox.Pending(ctx, 100)
	require.NoError(t, err)
	var ids []string
	for _, msg := range pending {
		if msg.AggregateID == id.String() {
			ids = append(ids, msg.ID)
		}
	}
	assert.Len(t, ids, 2)
	require.NoError(t, outbox.MarkPublished(ctx, ids))
}

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	repo := postgres.NewTransactionRepository(pool)
	views := postgres.NewAccountViewRepository(pool)

	id := domain.NewAggregateID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	agg := transaction.NewAggregate(transaction.BankTransaction{})
	require.NoError(t, agg.Handle(transaction.CreateBankTransaction{TransactionID: id, FromAccountID: "a", ToAccountID: "b", Amount: decimal.NewFromInt(3)}, now))
	_, err := repo.Upsert(ctx, agg)
	require.NoError(t, err)

	loaded, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	next := transaction.NewAggregate(*loaded)
	require.NoError(t, next.Handle(transaction.CancelBankTransaction{TransactionID: id, Reason: "test"}, now))
	saved, err := repo.Upsert(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusRolledBack, saved.Status)

	_, err = repo.FindByID(ctx, domain.NewAggregateID())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	viewID := domain.NewAggregateID()
	require.NoError(t, views.Upsert(ctx, repository.AccountView{ID: viewID, Email: "v@bank.test", Balance: decimal.NewFromInt(5), UpdatedAt: now}))
	require.NoError(t, views.Upsert(ctx, repository.AccountView{ID: viewID, Balance: decimal.NewFromInt(1), UpdatedAt: now.Add(-time.Second)}))
	view, err := views.FindByID(ctx, viewID)
	require.NoError(t, err)
	assert.Equal(t, "5", view.Balance.String())
	assert.Equal(t, "v@bank.test", view.Email)
}
