package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/domain/transaction"
)

var stamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestAccountRowRoundTrip(t *testing.T) {
	acc := account.BankAccount{
		ID:                   "acc-1",
		Email:                "a@bank.test",
		Balance:              decimal.RequireFromString("1000.50"),
		OpenedTransactions:   account.NewTransactionSet("tx-2"),
		FinishedTransactions: account.NewTransactionSet("tx-1", "tx-0"),
		Version:              3,
		CreatedAt:            stamp,
		UpdatedAt:            stamp.Add(time.Hour),
	}

	row, err := toAccountRow(acc)
	require.NoError(t, err)
	assert.Equal(t, "1000.5", row.Balance)
	assert.JSONEq(t, `["tx-0","tx-1"]`, string(row.FinishedTransactions))

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(back.Balance))
	back.Balance = acc.Balance
	assert.Equal(t, acc, back)

	again, err := toAccountRow(back)
	require.NoError(t, err)
	assert.Equal(t, row, again)
}

func TestAccountRowWithEmptySets(t *testing.T) {
	row := accountRow{ID: "acc-1", Email: "a@bank.test", Balance: "0"}
	acc, err := row.toDomain()
	require.NoError(t, err)
	assert.NotNil(t, acc.OpenedTransactions)
	assert.Empty(t, acc.OpenedTransactions)
}

func TestTransactionRowRoundTrip(t *testing.T) {
	tests := []transaction.BankTransaction{
		{
			ID:            "tx-1",
			CorrelationID: "tx-1",
			FromAccountID: "acc-a",
			ToAccountID:   "acc-b",
			Amount:        decimal.RequireFromString("300"),
			Status:        transaction.StatusDepositValidated,
			Version:       3,
			CreatedAt:     stamp,
			UpdatedAt:     stamp,
		},
		{
			ID:                 "tx-2",
			CorrelationID:      "corr",
			FromAccountID:      "acc-a",
			ToAccountID:        "acc-b",
			Amount:             decimal.RequireFromString("12"),
			Status:             transaction.StatusFailed,
			FailedAt:           transaction.StatusWithdrawValidated,
			FailureReason:      "deposit rejected",
			WithdrawRolledBack: true,
			Version:            5,
			CreatedAt:          stamp,
			UpdatedAt:          stamp,
		},
	}
	for _, tx := range tests {
		t.Run(tx.ID.String(), func(t *testing.T) {
			row := toTransactionRow(tx)
			back, err := row.toDomain()
			require.NoError(t, err)
			assert.Equal(t, tx, back)
			assert.Equal(t, row, toTransactionRow(back))
		})
	}
}

func TestTransactionRowRejectsUnknownStatus(t *testing.T) {
	_, err := transactionRow{Amount: "1", Status: "PAUSED"}.toDomain()
	assert.Error(t, err)
}
