package transaction

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/usecase"
)

type commandHandler interface {
	Handle(ctx context.Context, cmd transaction.Command) (*transaction.BankTransaction, error)
}

// Consumer drives the transaction side of the saga from bank-account events.
type Consumer struct {
	handler    commandHandler
	translator *Translator
	projector  *AccountProjector
	logger     *zap.Logger
}

func NewConsumer(handler commandHandler, translator *Translator, projector *AccountProjector, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{handler: handler, translator: translator, projector: projector, logger: logger}
}

// Consume projects the event into the account read model, then applies the commands
// it translates to.
func (c *Consumer) Consume(ctx context.Context, msg usecase.Message) error {
	env, err := wire.UnmarshalEnvelope(msg.Body)
	if err != nil {
		return err
	}
	decoded, err := wire.DecodeAccountEvent(env)
	if err != nil {
		return err
	}
	inbound, err := FromWire(decoded)
	if err != nil {
		return err
	}

	if err := c.projector.Project(ctx, inbound); err != nil {
		return fmt.Errorf("project %s: %w", env.Name, err)
	}

	cmds, err := c.translator.Translate(ctx, inbound)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		c.logger.Debug("no command for account event", zap.String("event", env.Name), zap.String("event_id", env.ID))
		return nil
	}

	for _, cmd := range cmds {
		if _, err := c.handler.Handle(ctx, cmd); err != nil {
			return fmt.Errorf("%s on transaction %s: %w", cmd.CommandName(), cmd.AggregateID(), err)
		}
	}
	return nil
}
