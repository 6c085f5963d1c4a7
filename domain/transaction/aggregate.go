package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/banking/domain"
)

var (
	ErrSameAccount       = domain.NewError(domain.ErrCodeInvalid, "source and destination accounts must differ")
	ErrTransactionExists = domain.NewError(domain.ErrCodeConflict, "bank transaction already exists")
	ErrAccountMismatch   = domain.NewError(domain.ErrCodeInvalid, "account does not take part in the transaction")
	ErrUnknownSide       = domain.NewError(domain.ErrCodeInvalid, "unknown rollback side")
	ErrNotFailed         = domain.WrapError(domain.ErrCodeInvalidTransition, "rollback acknowledged for a transaction that did not fail", domain.ErrInvalidTransition)
	ErrAlreadyFinalized  = domain.WrapError(domain.ErrCodeInvalidTransition, "transaction already finished", domain.ErrInvalidTransition)
	ErrStepOutOfSequence = domain.WrapError(domain.ErrCodeInvalidTransition, "transfer step out of sequence", domain.ErrInvalidTransition)
	ErrTransferSettling  = domain.WrapError(domain.ErrCodeInvalidTransition, "deposit validated, transfer is settling on both accounts", domain.ErrInvalidTransition)
)

// Aggregate wraps a BankTransaction together with its pending events.
type Aggregate struct {
	Transaction BankTransaction
	events      []Event
	changed     bool
}

func NewAggregate(tx BankTransaction) *Aggregate {
	return &Aggregate{Transaction: tx}
}

func (a *Aggregate) Events() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// Changed reports whether any command applied so far modified the transaction.
func (a *Aggregate) Changed() bool { return a.changed }

func (a *Aggregate) PullEvents() []Event {
	out := a.events
	a.events = nil
	return out
}

// Handle applies cmd. On error nothing changes. Replays recognised from the current
// status return nil and leave Changed false. The per-operation functions signal a
// replay with a nil slice; an empty one is a change with nothing to publish.
func (a *Aggregate) Handle(cmd Command, now time.Time) error {
	if cmd == nil {
		return domain.ErrInvalidPayload
	}
	if cmd.AggregateID().IsBlank() {
		return domain.ErrBlankAggregateID
	}

	next := a.Transaction
	var (
		events []Event
		err    error
	)

	switch c := cmd.(type) {
	case CreateBankTransaction:
		events, err = create(&next, c, now)
	case ValidateMoneyWithdraw:
		events, err = validateWithdraw(&next, c, now)
	case ValidateMoneyDeposit:
		events, err = validateDeposit(&next, c, now)
	case FinishBankTransaction:
		events, err = finish(&next, now)
	case CancelBankTransaction:
		events, err = cancel(&next, c, now)
	case CompleteRollback:
		events, err = completeRollback(&next, c, now)
	default:
		return fmt.Errorf("%w: unsupported transaction command %T", domain.ErrInvalidPayload, cmd)
	}
	if err != nil {
		return err
	}
	if events == nil {
		return nil
	}

	a.Transaction = next
	a.changed = true
	a.events = append(a.events, events...)
	return nil
}

func create(tx *BankTransaction, c CreateBankTransaction, now time.Time) ([]Event, error) {
	if tx.Exists() {
		return nil, ErrTransactionExists
	}
	if c.FromAccountID.IsBlank() || c.ToAccountID.IsBlank() {
		return nil, domain.ErrBlankAggregateID
	}
	if c.FromAccountID == c.ToAccountID {
		return nil, ErrSameAccount
	}
	if !c.Amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount
	}
	correlationID := strings.TrimSpace(c.CorrelationID)
	if correlationID == "" {
		correlationID = c.TransactionID.String()
	}

	*tx = BankTransaction{
		ID:            c.TransactionID,
		CorrelationID: correlationID,
		FromAccountID: c.FromAccountID,
		ToAccountID:   c.ToAccountID,
		Amount:        c.Amount,
		Status:        StatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return []Event{BankTransactionCreated{transfer(tx, now)}}, nil
}

func validateWithdraw(tx *BankTransaction, c ValidateMoneyWithdraw, now time.Time) ([]Event, error) {
	if !tx.Exists() {
		return nil, domain.ErrTransactionNotFound
	}
	if !c.AccountID.IsBlank() && c.AccountID != tx.FromAccountID {
		return nil, ErrAccountMismatch
	}
	switch {
	case tx.Status == StatusFailed || tx.Status == StatusRolledBack:
		// The withdrawal landed after the cancellation; give the money back.
		return []Event{TransactionWithdrawRolledBack{transfer(tx, now)}}, nil
	case tx.Status.rank() >= StatusWithdrawValidated.rank():
		return nil, nil
	case !tx.Status.CanTransitionTo(StatusWithdrawValidated):
		return nil, ErrStepOutOfSequence
	}
	tx.Status = StatusWithdrawValidated
	tx.UpdatedAt = now
	return []Event{BankTransactionMoneyWithdrawn{transfer(tx, now)}}, nil
}

func validateDeposit(tx *BankTransaction, c ValidateMoneyDeposit, now time.Time) ([]Event, error) {
	if !tx.Exists() {
		return nil, domain.ErrTransactionNotFound
	}
	if !c.AccountID.IsBlank() && c.AccountID != tx.ToAccountID {
		return nil, ErrAccountMismatch
	}
	switch {
	case tx.Status == StatusFailed || tx.Status == StatusRolledBack:
		return []Event{TransactionDepositRolledBack{transfer(tx, now)}}, nil
	case tx.Status.rank() >= StatusDepositValidated.rank():
		return nil, nil
	case !tx.Status.CanTransitionTo(StatusDepositValidated):
		return nil, ErrStepOutOfSequence
	}
	tx.Status = StatusDepositValidated
	tx.UpdatedAt = now
	return []Event{BankTransactionMoneyDeposited{transfer(tx, now)}}, nil
}

func finish(tx *BankTransaction, now time.Time) ([]Event, error) {
	if !tx.Exists() {
		return nil, domain.ErrTransactionNotFound
	}
	if tx.Status == StatusFinished {
		return nil, nil
	}
	if !tx.Status.CanTransitionTo(StatusFinished) {
		return nil, ErrStepOutOfSequence
	}
	tx.Status = StatusFinished
	tx.UpdatedAt = now
	return []Event{BankTransactionFinished{transfer(tx, now)}}, nil
}

// cancel fails the transfer and asks for the compensations its progress requires.
// Once the deposit is validated both accounts finish the transfer on their own, so the
// transfer can no longer be failed.
func cancel(tx *BankTransaction, c CancelBankTransaction, now time.Time) ([]Event, error) {
	if !tx.Exists() {
		return nil, domain.ErrTransactionNotFound
	}
	switch tx.Status {
	case StatusFailed, StatusRolledBack:
		return nil, nil
	case StatusFinished:
		return nil, ErrAlreadyFinalized
	case StatusDepositValidated:
		return nil, ErrTransferSettling
	}

	reason := strings.TrimSpace(c.Reason)
	if reason == "" {
		reason = "cancelled"
	}
	tx.FailedAt = tx.Status
	tx.FailureReason = reason
	tx.Status = StatusFailed
	tx.UpdatedAt = now

	events := []Event{BankTransactionFailed{
		TransactionID: tx.ID,
		CorrelationID: tx.CorrelationID,
		FailedAt:      tx.FailedAt,
		Reason:        reason,
		UpdatedAt:     now,
	}}
	switch tx.FailedAt {
	case StatusCreated:
		tx.Status = StatusRolledBack
		events = append(events, rolledBack(tx, now))
	case StatusWithdrawValidated:
		events = append(events, TransactionWithdrawRolledBack{transfer(tx, now)})
	}
	return events, nil
}

func completeRollback(tx *BankTransaction, c CompleteRollback, now time.Time) ([]Event, error) {
	if !tx.Exists() {
		return nil, domain.ErrTransactionNotFound
	}
	if tx.Status == StatusRolledBack {
		return nil, nil
	}
	if tx.Status != StatusFailed {
		return nil, ErrNotFailed
	}

	switch c.Side {
	case SideWithdraw:
		if tx.WithdrawRolledBack {
			return nil, nil
		}
		tx.WithdrawRolledBack = true
	case SideDeposit:
		if tx.DepositRolledBack {
			return nil, nil
		}
		tx.DepositRolledBack = true
	default:
		return nil, ErrUnknownSide
	}
	tx.UpdatedAt = now

	if !tx.rollbackComplete() {
		return []Event{}, nil
	}
	tx.Status = StatusRolledBack
	return []Event{rolledBack(tx, now)}, nil
}

func transfer(tx *BankTransaction, now time.Time) Transfer {
	return Transfer{
		TransactionID: tx.ID,
		CorrelationID: tx.CorrelationID,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount,
		UpdatedAt:     now,
	}
}

func rolledBack(tx *BankTransaction, now time.Time) BankTransactionRolledBack {
	return BankTransactionRolledBack{
		TransactionID: tx.ID,
		CorrelationID: tx.CorrelationID,
		UpdatedAt:     now,
	}
}
