package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/internal/infrastructure/buffer"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/usecase"
)

// Forwarder drains the outbound channel into a transport.
type Forwarder struct {
	context   string
	transport usecase.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewForwarder(boundedContext string, transport usecase.Publisher, m *metrics.Metrics, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{context: boundedContext, transport: transport, metrics: m, logger: logger}
}

// Consume publishes one outbound message. Transport failures are retryable.
func (f *Forwarder) Consume(ctx context.Context, msg usecase.Message) error {
	env, err := wire.UnmarshalEnvelope(msg.Body)
	if err != nil {
		return err
	}
	err = f.transport.Publish(ctx, env)
	f.metrics.Published(f.context, err)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "publish "+env.RoutingKey(), err)
	}
	f.logger.Debug("event published",
		zap.String("event_id", env.ID),
		zap.String("routing_key", env.RoutingKey()),
	)
	return nil
}

// ChannelPublisher publishes by appending to a durable channel. It serves as the
// inbound sink of a broker listener and as the in-process link between contexts.
type ChannelPublisher struct {
	channel *buffer.Channel
}

func NewChannelPublisher(channel *buffer.Channel) *ChannelPublisher {
	return &ChannelPublisher{channel: channel}
}

func (p *ChannelPublisher) Publish(ctx context.Context, env wire.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	return p.channel.Enqueue(buffer.Item{
		ID:   env.ID,
		Key:  env.AggregateID,
		Name: env.RoutingKey(),
		Data: body,
	})
}

// Accept stores a raw delivery. Bodies that are not envelopes are still kept so the
// processor dead-letters them instead of the broker redelivering forever.
func (p *ChannelPublisher) Accept(ctx context.Context, body []byte) error {
	env, err := wire.UnmarshalEnvelope(body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return p.channel.Enqueue(buffer.Item{Name: "malformed", Data: body})
	}
	return p.Publish(ctx, env)
}
