package memory

import (
	"context"
	"sync"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/repository"
)

// TransactionStore implements repository.TransactionRepository.
type TransactionStore struct {
	mu           sync.RWMutex
	transactions map[domain.AggregateID]transaction.BankTransaction
	outbox       *Outbox
}

func NewTransactionStore() *TransactionStore {
	s := &TransactionStore{transactions: make(map[domain.AggregateID]transaction.BankTransaction)}
	s.outbox = newOutbox(&s.mu)
	return s
}

func (s *TransactionStore) Outbox() *Outbox { return s.outbox }

func (s *TransactionStore) FindByID(ctx context.Context, id domain.AggregateID) (*transaction.BankTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *TransactionStore) Upsert(ctx context.Context, agg *transaction.Aggregate) (*transaction.BankTransaction, error) {
	if agg == nil || !agg.Transaction.Exists() {
		return nil, domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := repository.TransactionOutbox(agg.Events())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := agg.Transaction
	stored, ok := s.transactions[next.ID]
	switch {
	case ok && stored.Version != next.Version:
		return nil, domain.ErrVersionConflict
	case !ok && next.Version != 0:
		return nil, domain.ErrVersionConflict
	}

	next.Version++
	s.transactions[next.ID] = next
	s.outbox.append(msgs)
	return &next, nil
}

// AccountViewStore implements repository.AccountViewRepository.
type AccountViewStore struct {
	mu    sync.RWMutex
	views map[domain.AggregateID]repository.AccountView
}

func NewAccountViewStore() *AccountViewStore {
	return &AccountViewStore{views: make(map[domain.AggregateID]repository.AccountView)}
}

func (s *AccountViewStore) FindByID(ctx context.Context, id domain.AggregateID) (*repository.AccountView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &view, nil
}

func (s *AccountViewStore) Upsert(ctx context.Context, view repository.AccountView) error {
	if view.ID.IsBlank() {
		return domain.ErrBlankAggregateID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.views[view.ID]
	if ok && stored.UpdatedAt.After(view.UpdatedAt) {
		return nil
	}
	if ok && view.Email == "" {
		view.Email = stored.Email
	}
	s.views[view.ID] = view
	return nil
}
