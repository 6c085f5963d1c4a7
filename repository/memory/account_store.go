package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/repository"
)

// AccountStore implements repository.AccountRepository.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[domain.AggregateID]account.BankAccount
	emails   map[string]domain.AggregateID
	outbox   *Outbox
}

func NewAccountStore() *AccountStore {
	s := &AccountStore{
		accounts: make(map[domain.AggregateID]account.BankAccount),
		emails:   make(map[string]domain.AggregateID),
	}
	s.outbox = newOutbox(&s.mu)
	return s
}

// Outbox exposes the messages written by Upsert.
func (s *AccountStore) Outbox() *Outbox { return s.outbox }

func (s *AccountStore) FindByID(ctx context.Context, id domain.AggregateID) (*account.BankAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := acc.Clone()
	return &out, nil
}

func (s *AccountStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emails[emailKey(email)]
	return ok, nil
}

func (s *AccountStore) Upsert(ctx context.Context, agg *account.Aggregate) (*account.BankAccount, error) {
	if agg == nil || !agg.Account.Exists() {
		return nil, domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := repository.AccountOutbox(agg.Events())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := agg.Account.Clone()
	stored, ok := s.accounts[next.ID]
	switch {
	case ok && stored.Version != next.Version:
		return nil, domain.ErrVersionConflict
	case !ok && next.Version != 0:
		return nil, domain.ErrVersionConflict
	}
	key := emailKey(next.Email)
	if owner, taken := s.emails[key]; taken && owner != next.ID {
		return nil, domain.ErrEmailAlreadyExists
	}

	next.Version++
	s.accounts[next.ID] = next
	s.emails[key] = next.ID
	s.outbox.append(msgs)

	out := next.Clone()
	return &out, nil
}

// Delete drops an account. It exists for tests that simulate a vanished counterpart.
func (s *AccountStore) Delete(id domain.AggregateID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[id]; ok {
		delete(s.emails, emailKey(acc.Email))
		delete(s.accounts, id)
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
