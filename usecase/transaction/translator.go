package transaction

import (
	"context"
	"errors"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/repository"
)

// Translator maps account events to transaction commands.
type Translator struct {
	repo repository.TransactionRepository
}

func NewTranslator(repo repository.TransactionRepository) *Translator {
	return &Translator{repo: repo}
}

// Translate returns the commands evt triggers, nil for events of no interest.
func (t *Translator) Translate(ctx context.Context, evt InboundAccountEvent) ([]transaction.Command, error) {
	switch e := evt.(type) {
	case TransferWithdrawalStarted:
		return []transaction.Command{transaction.ValidateMoneyWithdraw{
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID,
			CorrelationID: e.TransactionID.String(),
		}}, nil
	case TransferDepositStarted:
		return []transaction.Command{transaction.ValidateMoneyDeposit{
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID,
			CorrelationID: e.TransactionID.String(),
		}}, nil
	case AccountTransactionFinished:
		tx, err := t.repo.FindByID(ctx, e.TransactionID)
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []transaction.Command{transaction.FinishBankTransaction{
			TransactionID: tx.ID,
			FromAccountID: tx.FromAccountID,
			ToAccountID:   tx.ToAccountID,
			CorrelationID: tx.CorrelationID,
		}}, nil
	case TransferRejected:
		return []transaction.Command{transaction.CancelBankTransaction{
			TransactionID: e.TransactionID,
			Reason:        rejectionReason(e),
		}}, nil
	case TransferWithdrawalRolledBack:
		return []transaction.Command{transaction.CompleteRollback{
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID,
			Side:          transaction.SideWithdraw,
		}}, nil
	case TransferDepositRolledBack:
		return []transaction.Command{transaction.CompleteRollback{
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID,
			Side:          transaction.SideDeposit,
		}}, nil
	case AccountCreated, AccountBalanceChanged, DefaultAccountEvent:
		return nil, nil
	default:
		return nil, nil
	}
}

func rejectionReason(e TransferRejected) string {
	step := e.Step
	if step != account.StepWithdraw && step != account.StepDeposit {
		step = "transfer"
	}
	if e.Reason == "" {
		return step + " rejected"
	}
	return step + " rejected: " + e.Reason
}
