package account

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/repository"
)

// Service exposes the account use cases behind the REST API.
type Service struct {
	handler *Handler
	repo    repository.AccountRepository
}

func NewService(handler *Handler, repo repository.AccountRepository) *Service {
	return &Service{handler: handler, repo: repo}
}

// CreateAccount opens an account with an optional initial balance.
func (s *Service) CreateAccount(ctx context.Context, email, balance string) (*account.BankAccount, error) {
	initial := decimal.Zero
	if strings.TrimSpace(balance) != "" {
		parsed, err := domain.ParseAmount(balance)
		if err != nil {
			return nil, err
		}
		initial = parsed
	}
	return s.handler.Handle(ctx, account.CreateAccount{
		AccountID: domain.NewAggregateID(),
		Email:     strings.TrimSpace(email),
		Balance:   initial,
	})
}

func (s *Service) GetAccount(ctx context.Context, rawID string) (*account.BankAccount, error) {
	id, err := domain.ParseAggregateID(rawID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Deposit(ctx context.Context, rawID, rawAmount string) (*account.BankAccount, error) {
	id, amount, err := parseMovement(rawID, rawAmount)
	if err != nil {
		return nil, err
	}
	return s.handler.Handle(ctx, account.DepositMoney{AccountID: id, Amount: amount})
}

func (s *Service) Withdraw(ctx context.Context, rawID, rawAmount string) (*account.BankAccount, error) {
	id, amount, err := parseMovement(rawID, rawAmount)
	if err != nil {
		return nil, err
	}
	return s.handler.Handle(ctx, account.WithdrawMoney{AccountID: id, Amount: amount})
}

func parseMovement(rawID, rawAmount string) (domain.AggregateID, decimal.Decimal, error) {
	id, err := domain.ParseAggregateID(rawID)
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := domain.ParsePositiveAmount(rawAmount)
	if err != nil {
		return "", decimal.Zero, err
	}
	return id, amount, nil
}
