package account

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
)

// BankAccount is the consistency boundary for one customer account.
type BankAccount struct {
	ID                   domain.AggregateID `json:"id"`
	Email                string             `json:"email"`
	Balance              decimal.Decimal    `json:"balance"`
	OpenedTransactions   TransactionSet     `json:"opened_transactions"`
	FinishedTransactions TransactionSet     `json:"finished_transactions"`
	Version              int64              `json:"version"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Exists reports whether the account has been created.
func (b *BankAccount) Exists() bool {
	return b != nil && !b.ID.IsBlank()
}

// Clone returns a deep copy so a failed command never leaks partial mutations.
func (b BankAccount) Clone() BankAccount {
	b.OpenedTransactions = b.OpenedTransactions.Clone()
	b.FinishedTransactions = b.FinishedTransactions.Clone()
	return b
}

// TransactionSet holds transaction ids. It marshals as a sorted JSON array.
type TransactionSet map[domain.AggregateID]struct{}

func NewTransactionSet(ids ...domain.AggregateID) TransactionSet {
	set := make(TransactionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s TransactionSet) Has(id domain.AggregateID) bool {
	_, ok := s[id]
	return ok
}

func (s TransactionSet) Clone() TransactionSet {
	out := make(TransactionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the members in lexical order.
func (s TransactionSet) IDs() []domain.AggregateID {
	ids := make([]domain.AggregateID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s TransactionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *TransactionSet) UnmarshalJSON(data []byte) error {
	var ids []domain.AggregateID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewTransactionSet(ids...)
	return nil
}
