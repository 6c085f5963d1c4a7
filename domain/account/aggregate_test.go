package account_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func openAccount(t *testing.T, id domain.AggregateID, balance string) *account.Aggregate {
	t.Helper()
	agg := account.NewAggregate(account.BankAccount{})
	require.NoError(t, agg.Handle(account.CreateAccount{
		AccountID: id,
		Email:     string(id) + "@bank.test",
		Balance:   dec(t, balance),
	}, now))
	agg.PullEvents()
	return agg
}

func TestCreateAccount(t *testing.T) {
	t.Run("emits AccountCreated", func(t *testing.T) {
		agg := account.NewAggregate(account.BankAccount{})
		err := agg.Handle(account.CreateAccount{AccountID: "acc-1", Email: " a@bank.test ", Balance: dec(t, "10")}, now)
		require.NoError(t, err)

		assert.Equal(t, "a@bank.test", agg.Account.Email)
		assert.True(t, agg.Account.Balance.Equal(dec(t, "10")))
		assert.Equal(t, now, agg.Account.CreatedAt)

		events := agg.PullEvents()
		require.Len(t, events, 1)
		created, ok := events[0].(account.AccountCreated)
		require.True(t, ok)
		assert.Equal(t, domain.AggregateID("acc-1"), created.AccountID)
		assert.Empty(t, agg.PullEvents())
	})

	t.Run("rejects negative balance", func(t *testing.T) {
		agg := account.NewAggregate(account.BankAccount{})
		err := agg.Handle(account.CreateAccount{AccountID: "acc-1", Email: "a@bank.test", Balance: dec(t, "-1")}, now)
		assert.ErrorIs(t, err, domain.ErrNegativeAmount)
		assert.False(t, agg.Account.Exists())
	})

	t.Run("rejects blank id and bad email", func(t *testing.T) {
		agg := account.NewAggregate(account.BankAccount{})
		assert.ErrorIs(t, agg.Handle(account.CreateAccount{AccountID: " ", Email: "a@bank.test"}, now), domain.ErrBlankAggregateID)
		err := agg.Handle(account.CreateAccount{AccountID: "acc-1", Email: "nope"}, now)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	})

	t.Run("rejects existing account", func(t *testing.T) {
		agg := openAccount(t, "acc-1", "0")
		err := agg.Handle(account.CreateAccount{AccountID: "acc-1", Email: "a@bank.test"}, now)
		assert.ErrorIs(t, err, account.ErrAccountExists)
	})
}

func TestDepositIsDecimalExact(t *testing.T) {
	agg := openAccount(t, "acc-1", "1000.50")

	require.NoError(t, agg.Handle(account.DepositMoney{AccountID: "acc-1", Amount: dec(t, "250.75")}, now))

	assert.Equal(t, "1251.25", agg.Account.Balance.StringFixed(2))
	events := agg.PullEvents()
	require.Len(t, events, 1)
	assert.IsType(t, account.MoneyDeposited{}, events[0])
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	agg := openAccount(t, "acc-1", "1000.00")

	err := agg.Handle(account.WithdrawMoney{AccountID: "acc-1", Amount: dec(t, "1500.00")}, now)

	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "1000.00", agg.Account.Balance.StringFixed(2))
	assert.Empty(t, agg.Events())
}

func TestNonPositiveAmounts(t *testing.T) {
	agg := openAccount(t, "acc-1", "10")

	cmds := []account.Command{
		account.DepositMoney{AccountID: "acc-1", Amount: decimal.Zero},
		account.WithdrawMoney{AccountID: "acc-1", Amount: dec(t, "-1")},
		account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx", Amount: decimal.Zero},
		account.DepositFromTransfer{AccountID: "acc-1", TransactionID: "tx", Amount: dec(t, "-5")},
	}
	for _, cmd := range cmds {
		t.Run(cmd.CommandName(), func(t *testing.T) {
			assert.ErrorIs(t, agg.Handle(cmd, now), domain.ErrNonPositiveAmount)
		})
	}
}

func TestCommandsOnMissingAccount(t *testing.T) {
	agg := account.NewAggregate(account.BankAccount{})
	err := agg.Handle(account.DepositMoney{AccountID: "ghost", Amount: dec(t, "1")}, now)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestWithdrawForTransferIsIdempotent(t *testing.T) {
	agg := openAccount(t, "acc-1", "1000")
	cmd := account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}

	require.NoError(t, agg.Handle(cmd, now))
	once := agg.Account.Clone()
	require.NoError(t, agg.Handle(cmd, now.Add(time.Second)))

	assert.Equal(t, once, agg.Account)
	assert.Equal(t, "700", agg.Account.Balance.String())
	assert.True(t, agg.Account.OpenedTransactions.Has("tx-1"))
	assert.Len(t, agg.PullEvents(), 1)
}

func TestWithdrawForTransferAfterFinishIsIgnored(t *testing.T) {
	agg := openAccount(t, "acc-1", "1000")
	require.NoError(t, agg.Handle(account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}, now))
	require.NoError(t, agg.Handle(account.FinishTransaction{AccountID: "acc-1", TransactionID: "tx-1"}, now))
	agg.PullEvents()

	require.NoError(t, agg.Handle(account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}, now))

	assert.Equal(t, "700", agg.Account.Balance.String())
	assert.Empty(t, agg.PullEvents())
}

func TestFinishTransaction(t *testing.T) {
	t.Run("moves transaction to finished", func(t *testing.T) {
		agg := openAccount(t, "acc-1", "0")
		require.NoError(t, agg.Handle(account.DepositFromTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "5")}, now))
		require.NoError(t, agg.Handle(account.FinishTransaction{AccountID: "acc-1", TransactionID: "tx-1"}, now))

		assert.False(t, agg.Account.OpenedTransactions.Has("tx-1"))
		assert.True(t, agg.Account.FinishedTransactions.Has("tx-1"))

		events := agg.PullEvents()
		require.Len(t, events, 2)
		assert.IsType(t, account.TransactionFinished{}, events[1])
	})

	t.Run("repeat is a no-op", func(t *testing.T) {
		agg := openAccount(t, "acc-1", "0")
		require.NoError(t, agg.Handle(account.DepositFromTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "5")}, now))
		require.NoError(t, agg.Handle(account.FinishTransaction{AccountID: "acc-1", TransactionID: "tx-1"}, now))
		agg.PullEvents()

		require.NoError(t, agg.Handle(account.FinishTransaction{AccountID: "acc-1", TransactionID: "tx-1"}, now))
		assert.Empty(t, agg.PullEvents())
	})

	t.Run("never opened fails", func(t *testing.T) {
		agg := openAccount(t, "acc-1", "0")
		err := agg.Handle(account.FinishTransaction{AccountID: "acc-1", TransactionID: "tx-9"}, now)
		assert.ErrorIs(t, err, account.ErrTransactionNotOpened)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	})
}

func TestRollbackWithdraw(t *testing.T) {
	t.Run("restores balance once", func(t *testing.T) {
		agg := openAccount(t, "acc-1", "1000")
		require.NoError(t, agg.Handle(account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}, now))
		agg.PullEvents()

		rollback := account.RollbackWithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}
		require.NoError(t, agg.Handle(rollback, now))
		require.NoError(t, agg.Handle(rollback, now))

		assert.Equal(t, "1000", agg.Account.Balance.String())
		assert.False(t, agg.Account.OpenedTransactions.Has("tx-1"))
		assert.False(t, agg.Account.FinishedTransactions.Has("tx-1"))

		events := agg.PullEvents()
		require.Len(t, events, 2)
		assert.True(t, events[0].(account.TransferWithdrawalRolledBack).Reverted)
		assert.False(t, events[1].(account.TransferWithdrawalRolledBack).Reverted)
	})

	t.Run("unknown transaction leaves balance unchanged", func(t *testing.T) {
		agg := openAccount(t, "acc-1", "1000")
		require.NoError(t, agg.Handle(account.RollbackWithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-2", Amount: dec(t, "300")}, now))
		assert.Equal(t, "1000", agg.Account.Balance.String())
	})
}

func TestRollbackDeposit(t *testing.T) {
	t.Run("removes credited amount", func(t *testing.T) {
		agg := openAccount(t, "acc-2", "500")
		require.NoError(t, agg.Handle(account.DepositFromTransfer{AccountID: "acc-2", TransactionID: "tx-1", Amount: dec(t, "300")}, now))
		require.NoError(t, agg.Handle(account.RollbackDepositFromTransfer{AccountID: "acc-2", TransactionID: "tx-1", Amount: dec(t, "300")}, now))

		assert.Equal(t, "500", agg.Account.Balance.String())
		assert.False(t, agg.Account.OpenedTransactions.Has("tx-1"))
	})

	t.Run("refuses to go negative", func(t *testing.T) {
		agg := openAccount(t, "acc-2", "0")
		require.NoError(t, agg.Handle(account.DepositFromTransfer{AccountID: "acc-2", TransactionID: "tx-1", Amount: dec(t, "300")}, now))
		require.NoError(t, agg.Handle(account.WithdrawMoney{AccountID: "acc-2", Amount: dec(t, "250")}, now))
		agg.PullEvents()

		err := agg.Handle(account.RollbackDepositFromTransfer{AccountID: "acc-2", TransactionID: "tx-1", Amount: dec(t, "300")}, now)

		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Equal(t, "50", agg.Account.Balance.String())
		assert.True(t, agg.Account.OpenedTransactions.Has("tx-1"))
		assert.Empty(t, agg.PullEvents())
	})
}

func TestRollbackOfFinishedTransferIsRefused(t *testing.T) {
	agg := openAccount(t, "acc-1", "1000")
	require.NoError(t, agg.Handle(account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}, now))
	require.NoError(t, agg.Handle(account.FinishTransaction{AccountID: "acc-1", TransactionID: "tx-1"}, now))
	agg.PullEvents()

	err := agg.Handle(account.RollbackWithdrawForTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}, now)
	assert.ErrorIs(t, err, account.ErrTransactionFinished)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidTransition))

	err = agg.Handle(account.RollbackDepositFromTransfer{AccountID: "acc-1", TransactionID: "tx-1", Amount: dec(t, "300")}, now)
	assert.ErrorIs(t, err, account.ErrTransactionFinished)

	assert.Equal(t, "700", agg.Account.Balance.String())
	assert.True(t, agg.Account.FinishedTransactions.Has("tx-1"))
	assert.Empty(t, agg.PullEvents())
}

// Random command sequences must never produce a negative balance or a transaction
// that is both opened and finished.
func TestInvariantsHoldForRandomSequences(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	txIDs := []domain.AggregateID{"tx-1", "tx-2", "tx-3"}

	for run := 0; run < 200; run++ {
		agg := openAccount(t, "acc-1", "100")
		for step := 0; step < 40; step++ {
			tx := txIDs[rnd.Intn(len(txIDs))]
			amount := decimal.NewFromInt(int64(rnd.Intn(80))).Div(decimal.NewFromInt(4))

			var cmd account.Command
			switch rnd.Intn(7) {
			case 0:
				cmd = account.DepositMoney{AccountID: "acc-1", Amount: amount}
			case 1:
				cmd = account.WithdrawMoney{AccountID: "acc-1", Amount: amount}
			case 2:
				cmd = account.WithdrawForTransfer{AccountID: "acc-1", TransactionID: tx, Amount: amount}
			case 3:
				cmd = account.DepositFromTransfer{AccountID: "acc-1", TransactionID: tx, Amount: amount}
			case 4:
				cmd = account.FinishTransaction{AccountID: "acc-1", TransactionID: tx}
			case 5:
				cmd = account.RollbackWithdrawForTransfer{AccountID: "acc-1", TransactionID: tx, Amount: amount}
			default:
				cmd = account.RollbackDepositFromTransfer{AccountID: "acc-1", TransactionID: tx, Amount: amount}
			}
			_ = agg.Handle(cmd, now)

			require.False(t, agg.Account.Balance.IsNegative(), "run %d step %d", run, step)
			for id := range agg.Account.OpenedTransactions {
				require.False(t, agg.Account.FinishedTransactions.Has(id), "run %d step %d tx %s", run, step, id)
			}
		}
	}
}

func TestTransferStep(t *testing.T) {
	tx, step, ok := account.TransferStep(account.DepositFromTransfer{AccountID: "a", TransactionID: "tx"})
	assert.True(t, ok)
	assert.Equal(t, domain.AggregateID("tx"), tx)
	assert.Equal(t, account.StepDeposit, step)

	_, _, ok = account.TransferStep(account.DepositMoney{AccountID: "a"})
	assert.False(t, ok)
}

func TestTransactionSetJSON(t *testing.T) {
	set := account.NewTransactionSet("b", "a")
	data, err := set.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var out account.TransactionSet
	require.NoError(t, out.UnmarshalJSON(data))
	assert.Equal(t, set, out)
}
