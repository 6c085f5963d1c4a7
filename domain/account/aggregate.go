package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

// ErrTransactionNotOpened is returned when a transfer is finished on an account that
// never took part in it.
var ErrTransactionNotOpened = domain.NewError(domain.ErrCodeNotFound, "transaction not opened on account")

// ErrTransactionFinished is returned when a rollback targets a transfer the account has
// already finished.
var ErrTransactionFinished = domain.WrapError(domain.ErrCodeInvalidTransition, "transaction already finished on account", domain.ErrInvalidTransition)

// ErrAccountExists is returned when CreateAccount targets an existing account.
var ErrAccountExists = domain.NewError(domain.ErrCodeConflict, "bank account already exists")

// Aggregate wraps a BankAccount together with the events produced by the commands
// applied to it and not yet handed to the outbox.
type Aggregate struct {
	Account BankAccount
	events  []Event
	changed bool
}

// NewAggregate wraps a loaded account. A zero BankAccount stands for "not created yet".
func NewAggregate(acc BankAccount) *Aggregate {
	return &Aggregate{Account: acc}
}

// Events returns the pending events without draining them.
func (a *Aggregate) Events() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// Changed reports whether any command applied so far modified the account.
func (a *Aggregate) Changed() bool { return a.changed }

// PullEvents drains the pending events.
func (a *Aggregate) PullEvents() []Event {
	out := a.events
	a.events = nil
	return out
}

// Handle applies cmd. On error the wrapped account and pending events are untouched.
// A command that is recognised as a replay returns nil without producing events.
func (a *Aggregate) Handle(cmd Command, now time.Time) error {
	if cmd == nil {
		return domain.ErrInvalidPayload
	}
	if cmd.AggregateID().IsBlank() {
		return domain.ErrBlankAggregateID
	}

	next := a.Account.Clone()
	var (
		events []Event
		err    error
	)

	switch c := cmd.(type) {
	case CreateAccount:
		events, err = create(&next, c, now)
	case DepositMoney:
		events, err = deposit(&next, c, now)
	case WithdrawMoney:
		events, err = withdraw(&next, c, now)
	case WithdrawForTransfer:
		events, err = withdrawForTransfer(&next, c, now)
	case DepositFromTransfer:
		events, err = depositFromTransfer(&next, c, now)
	case FinishTransaction:
		events, err = finishTransaction(&next, c, now)
	case RollbackWithdrawForTransfer:
		events, err = rollbackWithdraw(&next, c, now)
	case RollbackDepositFromTransfer:
		events, err = rollbackDeposit(&next, c, now)
	default:
		return fmt.Errorf("%w: unsupported account command %T", domain.ErrInvalidPayload, cmd)
	}
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	a.Account = next
	a.changed = true
	a.events = append(a.events, events...)
	return nil
}

func create(acc *BankAccount, c CreateAccount, now time.Time) ([]Event, error) {
	if acc.Exists() {
		return nil, ErrAccountExists
	}
	email := strings.TrimSpace(c.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.Invalidf("email %q is not valid", c.Email)
	}
	if c.Balance.IsNegative() {
		return nil, domain.ErrNegativeAmount
	}

	*acc = BankAccount{
		ID:                   c.AccountID,
		Email:                email,
		Balance:              c.Balance,
		OpenedTransactions:   NewTransactionSet(),
		FinishedTransactions: NewTransactionSet(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return []Event{AccountCreated{
		AccountID: acc.ID,
		Email:     acc.Email,
		Balance:   acc.Balance,
		UpdatedAt: now,
	}}, nil
}

func deposit(acc *BankAccount, c DepositMoney, now time.Time) ([]Event, error) {
	if err := requireExisting(acc, c.Amount); err != nil {
		return nil, err
	}
	acc.Balance = acc.Balance.Add(c.Amount)
	acc.UpdatedAt = now
	return []Event{MoneyDeposited{
		AccountID: acc.ID,
		Amount:    c.Amount,
		Balance:   acc.Balance,
		UpdatedAt: now,
	}}, nil
}

func withdraw(acc *BankAccount, c WithdrawMoney, now time.Time) ([]Event, error) {
	if err := requireExisting(acc, c.Amount); err != nil {
		return nil, err
	}
	if err := debit(acc, c.Amount); err != nil {
		return nil, err
	}
	acc.UpdatedAt = now
	return []Event{MoneyWithdrawn{
		AccountID: acc.ID,
		Amount:    c.Amount,
		Balance:   acc.Balance,
		UpdatedAt: now,
	}}, nil
}

func withdrawForTransfer(acc *BankAccount, c WithdrawForTransfer, now time.Time) ([]Event, error) {
	if !acc.Exists() {
		return nil, domain.ErrAccountNotFound
	}
	if seen(acc, c.TransactionID) {
		return nil, nil
	}
	if err := requireExisting(acc, c.Amount); err != nil {
		return nil, err
	}
	if c.TransactionID.IsBlank() {
		return nil, domain.ErrBlankAggregateID
	}
	if err := debit(acc, c.Amount); err != nil {
		return nil, err
	}
	acc.OpenedTransactions[c.TransactionID] = struct{}{}
	acc.UpdatedAt = now
	return []Event{TransferWithdrawalStarted{
		AccountID:     acc.ID,
		TransactionID: c.TransactionID,
		Amount:        c.Amount,
		Balance:       acc.Balance,
		UpdatedAt:     now,
	}}, nil
}

func depositFromTransfer(acc *BankAccount, c DepositFromTransfer, now time.Time) ([]Event, error) {
	if !acc.Exists() {
		return nil, domain.ErrAccountNotFound
	}
	if seen(acc, c.TransactionID) {
		return nil, nil
	}
	if err := requireExisting(acc, c.Amount); err != nil {
		return nil, err
	}
	if c.TransactionID.IsBlank() {
		return nil, domain.ErrBlankAggregateID
	}
	acc.Balance = acc.Balance.Add(c.Amount)
	acc.OpenedTransactions[c.TransactionID] = struct{}{}
	acc.UpdatedAt = now
	return []Event{TransferDepositStarted{
		AccountID:     acc.ID,
		TransactionID: c.TransactionID,
		Amount:        c.Amount,
		Balance:       acc.Balance,
		UpdatedAt:     now,
	}}, nil
}

func finishTransaction(acc *BankAccount, c FinishTransaction, now time.Time) ([]Event, error) {
	if !acc.Exists() {
		return nil, domain.ErrAccountNotFound
	}
	if acc.FinishedTransactions.Has(c.TransactionID) {
		return nil, nil
	}
	if !acc.OpenedTransactions.Has(c.TransactionID) {
		return nil, ErrTransactionNotOpened
	}
	delete(acc.OpenedTransactions, c.TransactionID)
	acc.FinishedTransactions[c.TransactionID] = struct{}{}
	acc.UpdatedAt = now
	return []Event{TransactionFinished{
		AccountID:     acc.ID,
		TransactionID: c.TransactionID,
		UpdatedAt:     now,
	}}, nil
}

// rollbackWithdraw gives the reserved amount back. The acknowledgement is emitted even
// when there is nothing to revert so the transaction can close its compensation.
func rollbackWithdraw(acc *BankAccount, c RollbackWithdrawForTransfer, now time.Time) ([]Event, error) {
	if !acc.Exists() {
		return nil, domain.ErrAccountNotFound
	}
	if acc.FinishedTransactions.Has(c.TransactionID) {
		return nil, ErrTransactionFinished
	}
	reverted := acc.OpenedTransactions.Has(c.TransactionID)
	if reverted {
		if !c.Amount.IsPositive() {
			return nil, domain.ErrNonPositiveAmount
		}
		acc.Balance = acc.Balance.Add(c.Amount)
		delete(acc.OpenedTransactions, c.TransactionID)
	}
	acc.UpdatedAt = now
	return []Event{TransferWithdrawalRolledBack{
		AccountID:     acc.ID,
		TransactionID: c.TransactionID,
		Amount:        c.Amount,
		Reverted:      reverted,
		Balance:       acc.Balance,
		UpdatedAt:     now,
	}}, nil
}

// rollbackDeposit takes the credited amount back. It refuses to drive the balance
// below zero; such a rollback needs manual attention.
func rollbackDeposit(acc *BankAccount, c RollbackDepositFromTransfer, now time.Time) ([]Event, error) {
	if !acc.Exists() {
		return nil, domain.ErrAccountNotFound
	}
	if acc.FinishedTransactions.Has(c.TransactionID) {
		return nil, ErrTransactionFinished
	}
	reverted := acc.OpenedTransactions.Has(c.TransactionID)
	if reverted {
		if !c.Amount.IsPositive() {
			return nil, domain.ErrNonPositiveAmount
		}
		if err := debit(acc, c.Amount); err != nil {
			return nil, err
		}
		delete(acc.OpenedTransactions, c.TransactionID)
	}
	acc.UpdatedAt = now
	return []Event{TransferDepositRolledBack{
		AccountID:     acc.ID,
		TransactionID: c.TransactionID,
		Amount:        c.Amount,
		Reverted:      reverted,
		Balance:       acc.Balance,
		UpdatedAt:     now,
	}}, nil
}

func requireExisting(acc *BankAccount, amount decimal.Decimal) error {
	if !acc.Exists() {
		return domain.ErrAccountNotFound
	}
	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	return nil
}

func debit(acc *BankAccount, amount decimal.Decimal) error {
	if acc.Balance.Sub(amount).IsNegative() {
		return domain.ErrInsufficientFunds
	}
	acc.Balance = acc.Balance.Sub(amount)
	return nil
}

func seen(acc *BankAccount, txID domain.AggregateID) bool {
	return acc.OpenedTransactions.Has(txID) || acc.FinishedTransactions.Has(txID)
}
