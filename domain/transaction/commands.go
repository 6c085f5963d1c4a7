package transaction

import (
	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

// Compensation sides acknowledged through CompleteRollback.
const (
	SideWithdraw = "withdraw"
	SideDeposit  = "deposit"
)

// Command is a request to change one BankTransaction. The set of commands is closed.
type Command interface {
	AggregateID() domain.AggregateID
	CommandName() string
	isTransactionCommand()
}

type CreateBankTransaction struct {
	TransactionID domain.AggregateID
	CorrelationID string
	FromAccountID domain.AggregateID
	ToAccountID   domain.AggregateID
	Amount        decimal.Decimal
}

type ValidateMoneyWithdraw struct {
	TransactionID domain.AggregateID
	AccountID     domain.AggregateID
	CorrelationID string
}

type ValidateMoneyDeposit struct {
	TransactionID domain.AggregateID
	AccountID     domain.AggregateID
	CorrelationID string
}

type FinishBankTransaction struct {
	TransactionID domain.AggregateID
	FromAccountID domain.AggregateID
	ToAccountID   domain.AggregateID
	CorrelationID string
}

type CancelBankTransaction struct {
	TransactionID domain.AggregateID
	Reason        string
}

// CompleteRollback records that an account acknowledged the compensation of Side.
type CompleteRollback struct {
	TransactionID domain.AggregateID
	AccountID     domain.AggregateID
	Side          string
}

func (c CreateBankTransaction) AggregateID() domain.AggregateID { return c.TransactionID }
func (c ValidateMoneyWithdraw) AggregateID() domain.AggregateID { return c.TransactionID }
func (c ValidateMoneyDeposit) AggregateID() domain.AggregateID  { return c.TransactionID }
func (c FinishBankTransaction) AggregateID() domain.AggregateID { return c.TransactionID }
func (c CancelBankTransaction) AggregateID() domain.AggregateID { return c.TransactionID }
func (c CompleteRollback) AggregateID() domain.AggregateID      { return c.TransactionID }

func (CreateBankTransaction) CommandName() string { return "CreateBankTransaction" }
func (ValidateMoneyWithdraw) CommandName() string { return "ValidateMoneyWithdraw" }
func (ValidateMoneyDeposit) CommandName() string  { return "ValidateMoneyDeposit" }
func (FinishBankTransaction) CommandName() string { return "FinishBankTransaction" }
func (CancelBankTransaction) CommandName() string { return "CancelBankTransaction" }
func (CompleteRollback) CommandName() string      { return "CompleteRollback" }

func (CreateBankTransaction) isTransactionCommand() {}
func (ValidateMoneyWithdraw) isTransactionCommand() {}
func (ValidateMoneyDeposit) isTransactionCommand()  {}
func (FinishBankTransaction) isTransactionCommand() {}
func (CancelBankTransaction) isTransactionCommand() {}
func (CompleteRollback) isTransactionCommand()      {}
