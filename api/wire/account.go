package wire

import (
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
)

type AccountCreatedPayload struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
	UpdatedAt int64  `json:"updated_at"`
}

// BalanceChangedPayload is shared by MoneyDeposited and MoneyWithdrawn.
type BalanceChangedPayload struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
	UpdatedAt int64  `json:"updated_at"`
}

// TransferStartedPayload is shared by both transfer steps.
type TransferStartedPayload struct {
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Balance       string `json:"balance"`
	UpdatedAt     int64  `json:"updated_at"`
}

type TransactionFinishedPayload struct {
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	UpdatedAt     int64  `json:"updated_at"`
}

type TransferRolledBackPayload struct {
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Reverted      bool   `json:"reverted"`
	Balance       string `json:"balance"`
	UpdatedAt     int64  `json:"updated_at"`
}

type TransferRejectedPayload struct {
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	Step          string `json:"step"`
	Reason        string `json:"reason"`
	UpdatedAt     int64  `json:"updated_at"`
}

// BankAccountEvent is a tagged union: at most one field is set. When none is, the
// event is the Default variant and consumers ignore it.
type BankAccountEvent struct {
	AccountCreated               *AccountCreatedPayload      `json:"account_created,omitempty"`
	MoneyDeposited               *BalanceChangedPayload      `json:"money_deposited,omitempty"`
	MoneyWithdrawn               *BalanceChangedPayload      `json:"money_withdrawn,omitempty"`
	TransferWithdrawalStarted    *TransferStartedPayload     `json:"transfer_withdrawal_started,omitempty"`
	TransferDepositStarted       *TransferStartedPayload     `json:"transfer_deposit_started,omitempty"`
	TransactionFinished          *TransactionFinishedPayload `json:"transaction_finished,omitempty"`
	TransferWithdrawalRolledBack *TransferRolledBackPayload  `json:"transfer_withdrawal_rolled_back,omitempty"`
	TransferDepositRolledBack    *TransferRolledBackPayload  `json:"transfer_deposit_rolled_back,omitempty"`
	TransferRejected             *TransferRejectedPayload    `json:"transfer_rejected,omitempty"`
}

// IsDefault reports whether no variant is set.
func (e BankAccountEvent) IsDefault() bool {
	return e == BankAccountEvent{}
}

// EncodeAccountEvent wraps a domain event into an envelope.
func EncodeAccountEvent(evt account.Event) (Envelope, error) {
	var payload BankAccountEvent
	switch e := evt.(type) {
	case account.AccountCreated:
		payload.AccountCreated = &AccountCreatedPayload{
			AccountID: e.AccountID.String(),
			Email:     e.Email,
			Balance:   e.Balance.String(),
			UpdatedAt: Millis(e.UpdatedAt),
		}
	case account.MoneyDeposited:
		payload.MoneyDeposited = balanceChanged(e.AccountID, e.Amount.String(), e.Balance.String(), Millis(e.UpdatedAt))
	case account.MoneyWithdrawn:
		payload.MoneyWithdrawn = balanceChanged(e.AccountID, e.Amount.String(), e.Balance.String(), Millis(e.UpdatedAt))
	case account.TransferWithdrawalStarted:
		payload.TransferWithdrawalStarted = &TransferStartedPayload{
			AccountID:     e.AccountID.String(),
			TransactionID: e.TransactionID.String(),
			Amount:        e.Amount.String(),
			Balance:       e.Balance.String(),
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	case account.TransferDepositStarted:
		payload.TransferDepositStarted = &TransferStartedPayload{
			AccountID:     e.AccountID.String(),
			TransactionID: e.TransactionID.String(),
			Amount:        e.Amount.String(),
			Balance:       e.Balance.String(),
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	case account.TransactionFinished:
		payload.TransactionFinished = &TransactionFinishedPayload{
			AccountID:     e.AccountID.String(),
			TransactionID: e.TransactionID.String(),
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	case account.TransferWithdrawalRolledBack:
		payload.TransferWithdrawalRolledBack = &TransferRolledBackPayload{
			AccountID:     e.AccountID.String(),
			TransactionID: e.TransactionID.String(),
			Amount:        e.Amount.String(),
			Reverted:      e.Reverted,
			Balance:       e.Balance.String(),
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	case account.TransferDepositRolledBack:
		payload.TransferDepositRolledBack = &TransferRolledBackPayload{
			AccountID:     e.AccountID.String(),
			TransactionID: e.TransactionID.String(),
			Amount:        e.Amount.String(),
			Reverted:      e.Reverted,
			Balance:       e.Balance.String(),
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	case account.TransferRejected:
		payload.TransferRejected = &TransferRejectedPayload{
			AccountID:     e.AccountID.String(),
			TransactionID: e.TransactionID.String(),
			Step:          e.Step,
			Reason:        e.Reason,
			UpdatedAt:     Millis(e.UpdatedAt),
		}
	default:
		return Envelope{}, domain.Invalidf("unsupported account event %T", evt)
	}
	return newEnvelope(ContextAccount, evt.EventName(), evt.AggregateID(), evt.OccurredAt(), payload)
}

// DecodeAccountEvent reads the union out of an envelope. Unknown names and empty
// payloads yield the Default variant.
func DecodeAccountEvent(env Envelope) (BankAccountEvent, error) {
	var evt BankAccountEvent
	if env.Context != ContextAccount {
		return BankAccountEvent{}, domain.Invalidf("envelope from %q is not an account event", env.Context)
	}
	ok, err := decodePayload(env, &evt)
	if err != nil || !ok {
		return BankAccountEvent{}, err
	}
	if !knownAccountEvent(env.Name) {
		return BankAccountEvent{}, nil
	}
	return evt, nil
}

func knownAccountEvent(name string) bool {
	switch name {
	case account.EventAccountCreated, account.EventMoneyDeposited, account.EventMoneyWithdrawn,
		account.EventTransferWithdrawalStarted, account.EventTransferDepositStarted,
		account.EventTransactionFinished, account.EventTransferWithdrawalRolledBack,
		account.EventTransferDepositRolledBack, account.EventTransferRejected:
		return true
	}
	return false
}

func balanceChanged(id domain.AggregateID, amount, balance string, at int64) *BalanceChangedPayload {
	return &BalanceChangedPayload{
		AccountID: id.String(),
		Amount:    amount,
		Balance:   balance,
		UpdatedAt: at,
	}
}
