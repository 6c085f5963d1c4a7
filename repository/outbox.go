package repository

import (
	"context"
	"time"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/domain/transaction"
)

// OutboxMessage is an encoded event waiting to be relayed.
type OutboxMessage struct {
	ID          string
	AggregateID string
	Context     string
	EventName   string
	Payload     []byte
	CreatedAt   time.Time
}

// OutboxRepository gives the relay access to messages written by Upsert.
type OutboxRepository interface {
	Pending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// AccountOutbox encodes account events for the outbox.
func AccountOutbox(events []account.Event) ([]OutboxMessage, error) {
	out := make([]OutboxMessage, 0, len(events))
	for _, evt := range events {
		env, err := wire.EncodeAccountEvent(evt)
		if err != nil {
			return nil, err
		}
		msg, err := outboxMessage(env)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// TransactionOutbox encodes transaction events for the outbox.
func TransactionOutbox(events []transaction.Event) ([]OutboxMessage, error) {
	out := make([]OutboxMessage, 0, len(events))
	for _, evt := range events {
		env, err := wire.EncodeTransactionEvent(evt)
		if err != nil {
			return nil, err
		}
		msg, err := outboxMessage(env)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func outboxMessage(env wire.Envelope) (OutboxMessage, error) {
	body, err := env.Marshal()
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:          env.ID,
		AggregateID: env.AggregateID,
		Context:     env.Context,
		EventName:   env.Name,
		Payload:     body,
		CreatedAt:   wire.FromMillis(env.OccurredAt),
	}, nil
}

// ClampLimit bounds page sizes to (0, 100].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
