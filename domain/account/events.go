package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

const (
	EventAccountCreated               = "account.created"
	EventMoneyDeposited               = "account.money_deposited"
	EventMoneyWithdrawn               = "account.money_withdrawn"
	EventTransferWithdrawalStarted    = "account.transfer_withdrawal_started"
	EventTransferDepositStarted       = "account.transfer_deposit_started"
	EventTransactionFinished          = "account.transaction_finished"
	EventTransferWithdrawalRolledBack = "account.transfer_withdrawal_rolled_back"
	EventTransferDepositRolledBack    = "account.transfer_deposit_rolled_back"
	EventTransferRejected             = "account.transfer_rejected"
)

// Transfer steps referenced by TransferRejected.
const (
	StepWithdraw = "withdraw"
	StepDeposit  = "deposit"
)

// Event is an immutable fact about one BankAccount. The set of events is closed.
type Event interface {
	EventName() string
	AggregateID() domain.AggregateID
	OccurredAt() time.Time
	isAccountEvent()
}

type AccountCreated struct {
	AccountID domain.AggregateID
	Email     string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

type MoneyDeposited struct {
	AccountID domain.AggregateID
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

type MoneyWithdrawn struct {
	AccountID domain.AggregateID
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

type TransferWithdrawalStarted struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
	Balance       decimal.Decimal
	UpdatedAt     time.Time
}

type TransferDepositStarted struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
	Balance       decimal.Decimal
	UpdatedAt     time.Time
}

// TransactionFinished carries only the ids; consumers recover the rest themselves.
type TransactionFinished struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	UpdatedAt     time.Time
}

// TransferWithdrawalRolledBack acknowledges a withdrawal compensation. Reverted is
// false when there was nothing to give back.
type TransferWithdrawalRolledBack struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
	Reverted      bool
	Balance       decimal.Decimal
	UpdatedAt     time.Time
}

type TransferDepositRolledBack struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Amount        decimal.Decimal
	Reverted      bool
	Balance       decimal.Decimal
	UpdatedAt     time.Time
}

// TransferRejected reports that a forward transfer step could not be applied.
// It is raised by the inbound consumer, never by the aggregate.
type TransferRejected struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	Step          string
	Reason        string
	UpdatedAt     time.Time
}

func (AccountCreated) EventName() string               { return EventAccountCreated }
func (MoneyDeposited) EventName() string               { return EventMoneyDeposited }
func (MoneyWithdrawn) EventName() string               { return EventMoneyWithdrawn }
func (TransferWithdrawalStarted) EventName() string    { return EventTransferWithdrawalStarted }
func (TransferDepositStarted) EventName() string       { return EventTransferDepositStarted }
func (TransactionFinished) EventName() string          { return EventTransactionFinished }
func (TransferWithdrawalRolledBack) EventName() string { return EventTransferWithdrawalRolledBack }
func (TransferDepositRolledBack) EventName() string    { return EventTransferDepositRolledBack }
func (TransferRejected) EventName() string             { return EventTransferRejected }

func (e AccountCreated) AggregateID() domain.AggregateID               { return e.AccountID }
func (e MoneyDeposited) AggregateID() domain.AggregateID               { return e.AccountID }
func (e MoneyWithdrawn) AggregateID() domain.AggregateID               { return e.AccountID }
func (e TransferWithdrawalStarted) AggregateID() domain.AggregateID    { return e.AccountID }
func (e TransferDepositStarted) AggregateID() domain.AggregateID       { return e.AccountID }
func (e TransactionFinished) AggregateID() domain.AggregateID          { return e.AccountID }
func (e TransferWithdrawalRolledBack) AggregateID() domain.AggregateID { return e.AccountID }
func (e TransferDepositRolledBack) AggregateID() domain.AggregateID    { return e.AccountID }
func (e TransferRejected) AggregateID() domain.AggregateID             { return e.AccountID }

func (e AccountCreated) OccurredAt() time.Time               { return e.UpdatedAt }
func (e MoneyDeposited) OccurredAt() time.Time               { return e.UpdatedAt }
func (e MoneyWithdrawn) OccurredAt() time.Time               { return e.UpdatedAt }
func (e TransferWithdrawalStarted) OccurredAt() time.Time    { return e.UpdatedAt }
func (e TransferDepositStarted) OccurredAt() time.Time       { return e.UpdatedAt }
func (e TransactionFinished) OccurredAt() time.Time          { return e.UpdatedAt }
func (e TransferWithdrawalRolledBack) OccurredAt() time.Time { return e.UpdatedAt }
func (e TransferDepositRolledBack) OccurredAt() time.Time    { return e.UpdatedAt }
func (e TransferRejected) OccurredAt() time.Time             { return e.UpdatedAt }

func (AccountCreated) isAccountEvent()               {}
func (MoneyDeposited) isAccountEvent()               {}
func (MoneyWithdrawn) isAccountEvent()               {}
func (TransferWithdrawalStarted) isAccountEvent()    {}
func (TransferDepositStarted) isAccountEvent()       {}
func (TransactionFinished) isAccountEvent()          {}
func (TransferWithdrawalRolledBack) isAccountEvent() {}
func (TransferDepositRolledBack) isAccountEvent()    {}
func (TransferRejected) isAccountEvent()             {}
