package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/usecase"
)

type commandHandler interface {
	Handle(ctx context.Context, cmd account.Command) (*account.BankAccount, error)
}

// Consumer drives the account side of the saga from bank-transaction events.
type Consumer struct {
	handler   commandHandler
	publisher usecase.Publisher
	clock     domain.Clock
	logger    *zap.Logger
}

// NewConsumer builds a consumer. Rejections of transfer steps are sent through
// publisher so the transaction can compensate.
func NewConsumer(handler commandHandler, publisher usecase.Publisher, clock domain.Clock, logger *zap.Logger) *Consumer {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{handler: handler, publisher: publisher, clock: clock, logger: logger}
}

// Consume handles one delivery. A returned error that domain.IsRetryable accepts asks
// for redelivery; any other error dead-letters the message.
func (c *Consumer) Consume(ctx context.Context, msg usecase.Message) error {
	env, err := wire.UnmarshalEnvelope(msg.Body)
	if err != nil {
		return err
	}
	decoded, err := wire.DecodeTransactionEvent(env)
	if err != nil {
		return err
	}
	inbound, err := FromWire(decoded)
	if err != nil {
		return err
	}

	cmds := Translate(inbound)
	if len(cmds) == 0 {
		c.logger.Debug("ignoring transaction event", zap.String("event", env.Name), zap.String("event_id", env.ID))
		return nil
	}

	for _, cmd := range cmds {
		if _, err := c.handler.Handle(ctx, cmd); err != nil {
			txID, step, ok := account.TransferStep(cmd)
			if ok && (!domain.IsRetryable(err) || msg.LastAttempt) {
				return c.reject(ctx, cmd, txID, step, err)
			}
			return fmt.Errorf("%s on account %s: %w", cmd.CommandName(), cmd.AggregateID(), err)
		}
	}
	return nil
}

func (c *Consumer) reject(ctx context.Context, cmd account.Command, txID domain.AggregateID, step string, cause error) error {
	c.logger.Warn("transfer step rejected",
		zap.String("transaction_id", txID.String()),
		zap.String("account_id", cmd.AggregateID().String()),
		zap.String("step", step),
		zap.Error(cause),
	)

	env, err := wire.EncodeAccountEvent(account.TransferRejected{
		AccountID:     cmd.AggregateID(),
		TransactionID: txID,
		Step:          step,
		Reason:        cause.Error(),
		UpdatedAt:     c.clock.Now(),
	})
	if err != nil {
		return err
	}
	return c.publisher.Publish(ctx, env)
}
