package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

const (
	EventCreated            = "transaction.created"
	EventMoneyWithdrawn     = "transaction.money_withdrawn"
	EventMoneyDeposited     = "transaction.money_deposited"
	EventFinished           = "transaction.finished"
	EventFailed             = "transaction.failed"
	EventRolledBack         = "transaction.rolled_back"
	EventWithdrawRolledBack = "transaction.withdraw_rolled_back"
	EventDepositRolledBack  = "transaction.deposit_rolled_back"
)

// Event is an immutable fact about one BankTransaction. The set of events is closed.
type Event interface {
	EventName() string
	AggregateID() domain.AggregateID
	OccurredAt() time.Time
	isTransactionEvent()
}

// Transfer carries the fields every forward step needs downstream.
type Transfer struct {
	TransactionID domain.AggregateID
	CorrelationID string
	FromAccountID domain.AggregateID
	ToAccountID   domain.AggregateID
	Amount        decimal.Decimal
	UpdatedAt     time.Time
}

type BankTransactionCreated struct{ Transfer }

type BankTransactionMoneyWithdrawn struct{ Transfer }

type BankTransactionMoneyDeposited struct{ Transfer }

type BankTransactionFinished struct{ Transfer }

type BankTransactionFailed struct {
	TransactionID domain.AggregateID
	CorrelationID string
	FailedAt      Status
	Reason        string
	UpdatedAt     time.Time
}

type BankTransactionRolledBack struct {
	TransactionID domain.AggregateID
	CorrelationID string
	UpdatedAt     time.Time
}

// TransactionWithdrawRolledBack asks the source account to give the money back.
type TransactionWithdrawRolledBack struct{ Transfer }

// TransactionDepositRolledBack asks the destination account to take the money back.
type TransactionDepositRolledBack struct{ Transfer }

func (BankTransactionCreated) EventName() string        { return EventCreated }
func (BankTransactionMoneyWithdrawn) EventName() string { return EventMoneyWithdrawn }
func (BankTransactionMoneyDeposited) EventName() string { return EventMoneyDeposited }
func (BankTransactionFinished) EventName() string       { return EventFinished }
func (BankTransactionFailed) EventName() string         { return EventFailed }
func (BankTransactionRolledBack) EventName() string     { return EventRolledBack }
func (TransactionWithdrawRolledBack) EventName() string { return EventWithdrawRolledBack }
func (TransactionDepositRolledBack) EventName() string  { return EventDepositRolledBack }

func (t Transfer) AggregateID() domain.AggregateID                  { return t.TransactionID }
func (e BankTransactionFailed) AggregateID() domain.AggregateID     { return e.TransactionID }
func (e BankTransactionRolledBack) AggregateID() domain.AggregateID { return e.TransactionID }

func (t Transfer) OccurredAt() time.Time                  { return t.UpdatedAt }
func (e BankTransactionFailed) OccurredAt() time.Time     { return e.UpdatedAt }
func (e BankTransactionRolledBack) OccurredAt() time.Time { return e.UpdatedAt }

func (BankTransactionCreated) isTransactionEvent()        {}
func (BankTransactionMoneyWithdrawn) isTransactionEvent() {}
func (BankTransactionMoneyDeposited) isTransactionEvent() {}
func (BankTransactionFinished) isTransactionEvent()       {}
func (BankTransactionFailed) isTransactionEvent()         {}
func (BankTransactionRolledBack) isTransactionEvent()     {}
func (TransactionWithdrawRolledBack) isTransactionEvent() {}
func (TransactionDepositRolledBack) isTransactionEvent()  {}
