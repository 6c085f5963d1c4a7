package transaction

import (
	"context"

	"github.com/fastygo/banking/repository"
)

// AccountProjector keeps the AccountView read model in step with account events.
type AccountProjector struct {
	views repository.AccountViewRepository
}

func NewAccountProjector(views repository.AccountViewRepository) *AccountProjector {
	return &AccountProjector{views: views}
}

// Project stores the balance an event reports. Events without a balance are ignored.
func (p *AccountProjector) Project(ctx context.Context, evt InboundAccountEvent) error {
	var view repository.AccountView
	switch e := evt.(type) {
	case AccountCreated:
		view = repository.AccountView{ID: e.AccountID, Email: e.Email, Balance: e.Balance, UpdatedAt: e.UpdatedAt}
	case AccountBalanceChanged:
		view = repository.AccountView{ID: e.AccountID, Balance: e.Balance, UpdatedAt: e.UpdatedAt}
	case TransferWithdrawalStarted:
		view = repository.AccountView{ID: e.AccountID, Balance: e.Balance, UpdatedAt: e.UpdatedAt}
	case TransferDepositStarted:
		view = repository.AccountView{ID: e.AccountID, Balance: e.Balance, UpdatedAt: e.UpdatedAt}
	case TransferWithdrawalRolledBack:
		view = repository.AccountView{ID: e.AccountID, Balance: e.Balance, UpdatedAt: e.UpdatedAt}
	case TransferDepositRolledBack:
		view = repository.AccountView{ID: e.AccountID, Balance: e.Balance, UpdatedAt: e.UpdatedAt}
	default:
		return nil
	}
	return p.views.Upsert(ctx, view)
}
