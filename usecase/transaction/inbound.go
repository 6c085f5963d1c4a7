package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
)

// InboundAccountEvent is a bank-account event this context reacts to.
type InboundAccountEvent interface {
	isInboundAccountEvent()
}

// BalanceSnapshot is the account state carried by balance-changing events.
type BalanceSnapshot struct {
	AccountID domain.AggregateID
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// StepEvent identifies one account's part in a transaction.
type StepEvent struct {
	AccountID     domain.AggregateID
	TransactionID domain.AggregateID
	UpdatedAt     time.Time
}

type (
	AccountCreated struct {
		BalanceSnapshot
		Email string
	}
	AccountBalanceChanged     struct{ BalanceSnapshot }
	TransferWithdrawalStarted struct {
		StepEvent
		Balance decimal.Decimal
	}
	TransferDepositStarted struct {
		StepEvent
		Balance decimal.Decimal
	}
	AccountTransactionFinished   struct{ StepEvent }
	TransferWithdrawalRolledBack struct {
		StepEvent
		Reverted bool
		Balance  decimal.Decimal
	}
	TransferDepositRolledBack struct {
		StepEvent
		Reverted bool
		Balance  decimal.Decimal
	}
	TransferRejected struct {
		StepEvent
		Step   string
		Reason string
	}
	// DefaultAccountEvent stands for every event kind this context ignores.
	DefaultAccountEvent struct{}
)

func (AccountCreated) isInboundAccountEvent()               {}
func (AccountBalanceChanged) isInboundAccountEvent()        {}
func (TransferWithdrawalStarted) isInboundAccountEvent()    {}
func (TransferDepositStarted) isInboundAccountEvent()       {}
func (AccountTransactionFinished) isInboundAccountEvent()   {}
func (TransferWithdrawalRolledBack) isInboundAccountEvent() {}
func (TransferDepositRolledBack) isInboundAccountEvent()    {}
func (TransferRejected) isInboundAccountEvent()             {}
func (DefaultAccountEvent) isInboundAccountEvent()          {}

// FromWire narrows the wire union to the events this context handles.
func FromWire(evt wire.BankAccountEvent) (InboundAccountEvent, error) {
	switch {
	case evt.AccountCreated != nil:
		p := evt.AccountCreated
		snap, err := snapshot(p.AccountID, p.Balance, p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return AccountCreated{BalanceSnapshot: snap, Email: p.Email}, nil
	case evt.MoneyDeposited != nil:
		return balanceChanged(evt.MoneyDeposited)
	case evt.MoneyWithdrawn != nil:
		return balanceChanged(evt.MoneyWithdrawn)
	case evt.TransferWithdrawalStarted != nil:
		step, balance, err := started(evt.TransferWithdrawalStarted)
		if err != nil {
			return nil, err
		}
		return TransferWithdrawalStarted{StepEvent: step, Balance: balance}, nil
	case evt.TransferDepositStarted != nil:
		step, balance, err := started(evt.TransferDepositStarted)
		if err != nil {
			return nil, err
		}
		return TransferDepositStarted{StepEvent: step, Balance: balance}, nil
	case evt.TransactionFinished != nil:
		p := evt.TransactionFinished
		step, err := stepEvent(p.AccountID, p.TransactionID, p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return AccountTransactionFinished{step}, nil
	case evt.TransferWithdrawalRolledBack != nil:
		step, balance, err := rolledBack(evt.TransferWithdrawalRolledBack)
		if err != nil {
			return nil, err
		}
		return TransferWithdrawalRolledBack{StepEvent: step, Reverted: evt.TransferWithdrawalRolledBack.Reverted, Balance: balance}, nil
	case evt.TransferDepositRolledBack != nil:
		step, balance, err := rolledBack(evt.TransferDepositRolledBack)
		if err != nil {
			return nil, err
		}
		return TransferDepositRolledBack{StepEvent: step, Reverted: evt.TransferDepositRolledBack.Reverted, Balance: balance}, nil
	case evt.TransferRejected != nil:
		p := evt.TransferRejected
		step, err := stepEvent(p.AccountID, p.TransactionID, p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return TransferRejected{StepEvent: step, Step: p.Step, Reason: p.Reason}, nil
	default:
		return DefaultAccountEvent{}, nil
	}
}

func balanceChanged(p *wire.BalanceChangedPayload) (InboundAccountEvent, error) {
	snap, err := snapshot(p.AccountID, p.Balance, p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return AccountBalanceChanged{snap}, nil
}

func started(p *wire.TransferStartedPayload) (StepEvent, decimal.Decimal, error) {
	step, err := stepEvent(p.AccountID, p.TransactionID, p.UpdatedAt)
	if err != nil {
		return StepEvent{}, decimal.Zero, err
	}
	balance, err := domain.ParseAmount(p.Balance)
	return step, balance, err
}

func rolledBack(p *wire.TransferRolledBackPayload) (StepEvent, decimal.Decimal, error) {
	step, err := stepEvent(p.AccountID, p.TransactionID, p.UpdatedAt)
	if err != nil {
		return StepEvent{}, decimal.Zero, err
	}
	balance, err := domain.ParseAmount(p.Balance)
	return step, balance, err
}

func snapshot(rawID, rawBalance string, at int64) (BalanceSnapshot, error) {
	id, err := domain.ParseAggregateID(rawID)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	balance, err := domain.ParseAmount(rawBalance)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return BalanceSnapshot{AccountID: id, Balance: balance, UpdatedAt: wire.FromMillis(at)}, nil
}

func stepEvent(rawAccount, rawTransaction string, at int64) (StepEvent, error) {
	accountID, err := domain.ParseAggregateID(rawAccount)
	if err != nil {
		return StepEvent{}, err
	}
	txID, err := domain.ParseAggregateID(rawTransaction)
	if err != nil {
		return StepEvent{}, err
	}
	return StepEvent{AccountID: accountID, TransactionID: txID, UpdatedAt: wire.FromMillis(at)}, nil
}
