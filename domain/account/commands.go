package account

import (
	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

// Command is a request to change one BankAccount. The set of commands is closed.
type Command interface {
	AggregateID() domain.AggregateID
	CommandName() string
	isAccountCommand()
}

type CreateAccount struct {
	AccountID domain.AggregateID
	Email     string
	Balance   decimal.Decimal
}

type DepositMoney struct {
	AccountID domain.AggregateID
	Amount    decimal.Decimal
}

type WithdrawMoney struct {
	AccountID domain.AggregateID
	Amount    decimal.Decimal
}

// WithdrawForTransfer reserves money on the source account of a transfer.
type WithdrawForTransfer struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
}

// DepositFromTransfer credits the destination account of a transfer.
type DepositFromTransfer struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
}

type FinishTransaction struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
}

type RollbackWithdrawForTransfer struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
}

type RollbackDepositFromTransfer struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
}

func (c CreateAccount) AggregateID() domain.AggregateID               { return c.AccountID }
func (c DepositMoney) AggregateID() domain.AggregateID                { return c.AccountID }
func (c WithdrawMoney) AggregateID() domain.AggregateID               { return c.AccountID }
func (c WithdrawForTransfer) AggregateID() domain.AggregateID         { return c.AccountID }
func (c DepositFromTransfer) AggregateID() domain.AggregateID         { return c.AccountID }
func (c FinishTransaction) AggregateID() domain.AggregateID           { return c.AccountID }
func (c RollbackWithdrawForTransfer) AggregateID() domain.AggregateID { return c.AccountID }
func (c RollbackDepositFromTransfer) AggregateID() domain.AggregateID { return c.AccountID }

func (CreateAccount) CommandName() string               { return "CreateAccount" }
func (DepositMoney) CommandName() string                { return "DepositMoney" }
func (WithdrawMoney) CommandName() string               { return "WithdrawMoney" }
func (WithdrawForTransfer) CommandName() string         { return "WithdrawForTransfer" }
func (DepositFromTransfer) CommandName() string         { return "DepositFromTransfer" }
func (FinishTransaction) CommandName() string           { return "FinishTransaction" }
func (RollbackWithdrawForTransfer) CommandName() string { return "RollbackWithdrawForTransfer" }
func (RollbackDepositFromTransfer) CommandName() string { return "RollbackDepositFromTransfer" }

func (CreateAccount) isAccountCommand()               {}
func (DepositMoney) isAccountCommand()                {}
func (WithdrawMoney) isAccountCommand()               {}
func (WithdrawForTransfer) isAccountCommand()         {}
func (DepositFromTransfer) isAccountCommand()         {}
func (FinishTransaction) isAccountCommand()           {}
func (RollbackWithdrawForTransfer) isAccountCommand() {}
func (RollbackDepositFromTransfer) isAccountCommand() {}

// TransferStep returns the transaction id and step name when the command is one
// of the two forward steps of a transfer saga.
func TransferStep(cmd Command) (domain.AggregateID, string, bool) {
	switch c := cmd.(type) {
	case WithdrawForTransfer:
		return c.TransactionID, StepWithdraw, true
	case DepositFromTransfer:
		return c.TransactionID, StepDeposit, true
	default:
		return "", "", false
	}
}
