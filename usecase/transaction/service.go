package transaction

import (
	"context"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/repository"
)

// Service exposes the transaction use cases behind the REST API.
type Service struct {
	handler *Handler
	creator *Creator
	repo    repository.TransactionRepository
}

func NewService(handler *Handler, creator *Creator, repo repository.TransactionRepository) *Service {
	return &Service{handler: handler, creator: creator, repo: repo}
}

// CreateTransaction starts a transfer saga.
func (s *Service) CreateTransaction(ctx context.Context, from, to, amount, correlationID string) (*transaction.BankTransaction, error) {
	fromID, err := domain.ParseAggregateID(from)
	if err != nil {
		return nil, err
	}
	toID, err := domain.ParseAggregateID(to)
	if err != nil {
		return nil, err
	}
	value, err := domain.ParsePositiveAmount(amount)
	if err != nil {
		return nil, err
	}
	return s.creator.Create(ctx, CreateTransactionInput{
		CorrelationID: correlationID,
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        value,
	})
}

func (s *Service) GetTransaction(ctx context.Context, rawID string) (*transaction.BankTransaction, error) {
	id, err := domain.ParseAggregateID(rawID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// CancelTransaction fails the transfer and starts its compensation.
func (s *Service) CancelTransaction(ctx context.Context, rawID, reason string) (*transaction.BankTransaction, error) {
	id, err := domain.ParseAggregateID(rawID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.handler.Handle(ctx, transaction.CancelBankTransaction{TransactionID: id, Reason: reason})
}
