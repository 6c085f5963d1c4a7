package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
)

type TransactionRepository interface {
	// FindByID returns domain.ErrTransactionNotFound when the transaction does not exist.
	FindByID(ctx context.Context, id domain.AggregateID) (*transaction.BankTransaction, error)
	Upsert(ctx context.Context, agg *transaction.Aggregate) (*transaction.BankTransaction, error)
}

// AccountView is what the bank-transaction context knows about an account.
type AccountView struct {
	ID        domain.AggregateID `json:"id"`
	Email     string             `json:"email"`
	Balance   decimal.Decimal    `json:"balance"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// AccountViewRepository stores the account read model fed by account events.
type AccountViewRepository interface {
	// FindByID returns domain.ErrAccountNotFound for accounts never projected.
	FindByID(ctx context.Context, id domain.AggregateID) (*AccountView, error)
	// Upsert keeps the stored view when it is newer than view.
	Upsert(ctx context.Context, view AccountView) error
}
