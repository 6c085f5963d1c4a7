package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

// Status is the position of a transfer in its saga.
type Status string

const (
	StatusCreated           Status = "CREATED"
	StatusWithdrawValidated Status = "WITHDRAW_VALIDATED"
	StatusDepositValidated  Status = "DEPOSIT_VALIDATED"
	StatusFinished          Status = "FINISHED"
	StatusFailed            Status = "FAILED"
	StatusRolledBack        Status = "ROLLED_BACK"
)

var transitions = map[Status][]Status{
	StatusCreated:           {StatusWithdrawValidated, StatusFailed},
	StatusWithdrawValidated: {StatusDepositValidated, StatusFailed},
	StatusDepositValidated:  {StatusFinished},
	StatusFailed:            {StatusRolledBack},
}

// ParseStatus validates a stored status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusCreated, StatusWithdrawValidated, StatusDepositValidated,
		StatusFinished, StatusFailed, StatusRolledBack:
		return s, nil
	}
	return "", domain.Invalidf("unknown transaction status %q", raw)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusRolledBack
}

// CanTransitionTo reports whether next is a direct successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// rank orders the happy path so replays of earlier steps can be recognised.
func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 1
	case StatusWithdrawValidated:
		return 2
	case StatusDepositValidated:
		return 3
	case StatusFinished:
		return 4
	default:
		return 0
	}
}

func (s Status) String() string { return string(s) }

// BankTransaction tracks one transfer between two accounts. FailedAt keeps the status
// the transfer had when it was cancelled.
type BankTransaction struct {
	ID                 domain.AggregateID `json:"id"`
	CorrelationID      string             `json:"correlation_id"`
	FromAccountID      domain.AggregateID `json:"from_account_id"`
	ToAccountID        domain.AggregateID `json:"to_account_id"`
	Amount             decimal.Decimal    `json:"amount"`
	Status             Status             `json:"status"`
	FailedAt           Status             `json:"failed_at,omitempty"`
	FailureReason      string             `json:"failure_reason,omitempty"`
	WithdrawRolledBack bool               `json:"withdraw_rolled_back"`
	DepositRolledBack  bool               `json:"deposit_rolled_back"`
	Version            int64              `json:"version"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (t *BankTransaction) Exists() bool {
	return t != nil && !t.ID.IsBlank()
}

// rollbackComplete reports whether every compensation required by FailedAt was
// acknowledged.
func (t *BankTransaction) rollbackComplete() bool {
	switch t.FailedAt {
	case StatusWithdrawValidated:
		return t.WithdrawRolledBack
	default:
		return true
	}
}
