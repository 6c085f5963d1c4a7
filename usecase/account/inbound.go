package account

import (
	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
)

// Transfer is the account context's view of a transfer announced by bank-transaction.
type Transfer struct {
	TransactionID domain.AggregateID
	CorrelationID string
	FromAccountID domain.AggregateID
	ToAccountID   domain.AggregateID
	Amount        decimal.Decimal
}

// InboundTransactionEvent is a bank-transaction event this context reacts to.
type InboundTransactionEvent interface {
	isInboundTransactionEvent()
}

type (
	TransactionCreated            struct{ Transfer }
	TransactionMoneyWithdrawn     struct{ Transfer }
	TransactionMoneyDeposited     struct{ Transfer }
	TransactionWithdrawRolledBack struct{ Transfer }
	TransactionDepositRolledBack  struct{ Transfer }
	// DefaultTransactionEvent stands for every event kind this context ignores.
	DefaultTransactionEvent struct{}
)

func (TransactionCreated) isInboundTransactionEvent()            {}
func (TransactionMoneyWithdrawn) isInboundTransactionEvent()     {}
func (TransactionMoneyDeposited) isInboundTransactionEvent()     {}
func (TransactionWithdrawRolledBack) isInboundTransactionEvent() {}
func (TransactionDepositRolledBack) isInboundTransactionEvent()  {}
func (DefaultTransactionEvent) isInboundTransactionEvent()       {}

// FromWire narrows the wire union to the events this context handles.
func FromWire(evt wire.BankTransactionEvent) (InboundTransactionEvent, error) {
	var (
		payload *wire.TransferPayload
		wrap    func(Transfer) InboundTransactionEvent
	)
	switch {
	case evt.Created != nil:
		payload, wrap = evt.Created, func(t Transfer) InboundTransactionEvent { return TransactionCreated{t} }
	case evt.MoneyWithdrawn != nil:
		payload, wrap = evt.MoneyWithdrawn, func(t Transfer) InboundTransactionEvent { return TransactionMoneyWithdrawn{t} }
	case evt.MoneyDeposited != nil:
		payload, wrap = evt.MoneyDeposited, func(t Transfer) InboundTransactionEvent { return TransactionMoneyDeposited{t} }
	case evt.WithdrawRolledBack != nil:
		payload, wrap = evt.WithdrawRolledBack, func(t Transfer) InboundTransactionEvent { return TransactionWithdrawRolledBack{t} }
	case evt.DepositRolledBack != nil:
		payload, wrap = evt.DepositRolledBack, func(t Transfer) InboundTransactionEvent { return TransactionDepositRolledBack{t} }
	default:
		return DefaultTransactionEvent{}, nil
	}

	transfer, err := parseTransfer(payload)
	if err != nil {
		return nil, err
	}
	return wrap(transfer), nil
}

func parseTransfer(p *wire.TransferPayload) (Transfer, error) {
	txID, err := domain.ParseAggregateID(p.TransactionID)
	if err != nil {
		return Transfer{}, err
	}
	from, err := domain.ParseAggregateID(p.FromAccountID)
	if err != nil {
		return Transfer{}, err
	}
	to, err := domain.ParseAggregateID(p.ToAccountID)
	if err != nil {
		return Transfer{}, err
	}
	amount, err := domain.ParsePositiveAmount(p.Amount)
	if err != nil {
		return Transfer{}, err
	}
	return Transfer{
		TransactionID: txID,
		CorrelationID: p.CorrelationID,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
	}, nil
}

// Translate maps an inbound event to the account commands it triggers. Ignored events
// translate to nil.
func Translate(evt InboundTransactionEvent) []account.Command {
	switch e := evt.(type) {
	case TransactionCreated:
		return []account.Command{account.WithdrawForTransfer{
			AccountID:     e.FromAccountID,
			TransactionID: e.TransactionID,
			Amount:        e.Amount,
		}}
	case TransactionMoneyWithdrawn:
		return []account.Command{account.DepositFromTransfer{
			AccountID:     e.ToAccountID,
			TransactionID: e.TransactionID,
			Amount:        e.Amount,
		}}
	case TransactionMoneyDeposited:
		return []account.Command{
			account.FinishTransaction{AccountID: e.FromAccountID, TransactionID: e.TransactionID},
			account.FinishTransaction{AccountID: e.ToAccountID, TransactionID: e.TransactionID},
		}
	case TransactionWithdrawRolledBack:
		return []account.Command{account.RollbackWithdrawForTransfer{
			AccountID:     e.FromAccountID,
			TransactionID: e.TransactionID,
			Amount:        e.Amount,
		}}
	case TransactionDepositRolledBack:
		return []account.Command{account.RollbackDepositFromTransfer{
			AccountID:     e.ToAccountID,
			TransactionID: e.TransactionID,
			Amount:        e.Amount,
		}}
	case DefaultTransactionEvent:
		return nil
	default:
		return nil
	}
}
