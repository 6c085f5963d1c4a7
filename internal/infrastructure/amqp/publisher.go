package amqp

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/fastygo/banking/api/wire"
)

// Publisher publishes envelopes to a topic exchange keyed by "<context>.<event name>".
type Publisher struct {
	exchange string
	connect  Connect
	logger   *zap.Logger

	mu         sync.Mutex
	connection io.Closer
	channel    Channel
}

func NewPublisher(exchange string, connect Connect, logger *zap.Logger) (*Publisher, error) {
	switch {
	case exchange == "":
		return nil, errors.New("amqp: exchange is required")
	case connect == nil:
		return nil, errors.New("amqp: connect is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{exchange: exchange, connect: connect, logger: logger}, nil
}

// Publish sends env with persistent delivery. A closed connection is reopened once.
func (p *Publisher) Publish(ctx context.Context, env wire.Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         env.Name,
		AppId:        env.Context,
		Timestamp:    wire.FromMillis(env.OccurredAt),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.channel == nil {
			p.connection, p.channel, err = p.connect()
			if err != nil {
				p.connection, p.channel = nil, nil
				return err
			}
		}

		err = p.channel.Publish(p.exchange, env.RoutingKey(), false, false, msg)
		if !isConnectionError(err) || attempt > 0 {
			return err
		}
		p.reset()
	}
}

// Close releases the underlying connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func (p *Publisher) reset() {
	if p.connection != nil {
		if err := p.connection.Close(); err != nil {
			p.logger.Warn("failed to close amqp connection", zap.Error(err))
		}
	}
	p.connection, p.channel = nil, nil
}

func isConnectionError(err error) bool {
	return err == amqp.ErrClosed || err == amqp.ErrFrame || err == amqp.ErrUnexpectedFrame
}
