package wire

import (
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
)

// TransferPayload is shared by every transaction event that describes the transfer.
type TransferPayload struct {
	TransactionID string `json:"transaction_id"`
	CorrelationID string `json:"correlation_id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	UpdatedAt     int64  `json:"updated_at"`
}

type TransactionFailedPayload struct {
	TransactionID string `json:"transaction_id"`
	CorrelationID string `json:"correlation_id"`
	FailedAt      string `json:"failed_at"`
	Reason        string `json:"reason"`
	UpdatedAt     int64  `json:"updated_at"`
}

type TransactionRolledBackPayload struct {
	TransactionID string `json:"transaction_id"`
	CorrelationID string `json:"correlation_id"`
	UpdatedAt     int64  `json:"updated_at"`
}

// BankTransactionEvent is a tagged union: at most one field is set.
type BankTransactionEvent struct {
	Created            *TransferPayload              `json:"created,omitempty"`
	MoneyWithdrawn     *TransferPayload              `json:"money_withdrawn,omitempty"`
	MoneyDeposited     *TransferPayload              `json:"money_deposited,omitempty"`
	Finished           *TransferPayload              `json:"finished,omitempty"`
	Failed             *TransactionFailedPayload     `json:"failed,omitempty"`
	RolledBack         *TransactionRolledBackPayload `json:"rolled_back,omitempty"`
	WithdrawRolledBack *TransferPayload              `json:"withdraw_rolled_back,omitempty"`
	DepositRolledBack  *TransferPayload              `json:"deposit_rolled_back,omitempty"`
}

func (e BankTransactionEvent) IsDefault() bool {
	return e == BankTransactionEvent{}
}

// EncodeTransactionEvent wraps a domain event into an envelope.
func EncodeTransactionEvent(evt transaction.Event) (Envelope, error) {
	var payload BankTransactionEvent
	switch e := evt.(type) {
	case transaction.BankTransactionCreated:
		payload.Created = transferPayload(e.Transfer)
	case transaction.BankTransactionMoneyWithdrawn:
		payload.MoneyWithdrawn = transferPayload(e.Transfer)
	case transaction.BankTransactionMoneyDeposited:
		payload.MoneyDeposited = transferPayload(e.Transfer)
	case transaction.BankTransactionFinished:
		payload.Finished = transferPayload(e.Transfer)
	case transaction.TransactionWithdrawRolledBack:
		payload.WithdrawRolledBack = transferPayload(e.Transfer)
	case transaction.TransactionDepositRolledBack:
		payload.DepositRolledBack = transferPayload(e.Transfer)
	case transaction.BankTransactionFailed:
		payload.Failed = &TransactionFailedPayload{
			TransactionID: e.TransactionID.String(),
			CorrelationID: e.CorrelationID,
			FailedAt:      e.FailedAt.String(),
			Reason:        e.Reason,
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	case transaction.BankTransactionRolledBack:
		payload.RolledBack = &TransactionRolledBackPayload{
			TransactionID: e.TransactionID.String(),
			CorrelationID: e.CorrelationID,
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	default:
		return Envelope{}, domain.Invalidf("unsupported transaction event %T", evt)
	}
	return newEnvelope(ContextTransaction, evt.EventName(), evt.AggregateID(), evt.OccurredAt(), payload)
}

// DecodeTransactionEvent reads the union out of an envelope. Unknown names and empty
// payloads yield the Default variant.
func DecodeTransactionEvent(env Envelope) (BankTransactionEvent, error) {
	var evt BankTransactionEvent
	if env.Context != ContextTransaction {
		return BankTransactionEvent{}, domain.Invalidf("envelope from %q is not a transaction event", env.Context)
	}
	ok, err := decodePayload(env, &evt)
	if err != nil || !ok {
		return BankTransactionEvent{}, err
	}
	switch env.Name {
	case transaction.EventCreated, transaction.EventMoneyWithdrawn, transaction.EventMoneyDeposited,
		transaction.EventFinished, transaction.EventFailed, transaction.EventRolledBack,
		transaction.EventWithdrawRolledBack, transaction.EventDepositRolledBack:
		return evt, nil
	}
	return BankTransactionEvent{}, nil
}

func transferPayload(t transaction.Transfer) *TransferPayload {
	return &TransferPayload{
		TransactionID: t.TransactionID.String(),
		CorrelationID: t.CorrelationID,
		FromAccountID: t.FromAccountID.String(),
		ToAccountID:   t.ToAccountID.String(),
		Amount:        t.Amount.String(),
		UpdatedAt:     Millis(t.UpdatedAt),
	}
}
