package repository

import (
	"context"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
)

// AccountRepository persists BankAccount aggregates of the bank-account context.
type AccountRepository interface {
	// FindByID returns domain.ErrAccountNotFound when the account does not exist.
	FindByID(ctx context.Context, id domain.AggregateID) (*account.BankAccount, error)
	// Upsert stores the account and its pending events in one unit. The stored version
	// must still be the one the aggregate was loaded with.
	Upsert(ctx context.Context, agg *account.Aggregate) (*account.BankAccount, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
