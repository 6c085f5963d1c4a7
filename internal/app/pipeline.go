// Package app assembles the runtime of each bounded context: repositories, handlers,
// durable channels and the background loops that move events between contexts.
package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/banking/internal/config"
	"github.com/fastygo/banking/internal/infrastructure/buffer"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/internal/services"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/usecase"
)

// Deps are the shared collaborators handed to every context.
type Deps struct {
	Store   *buffer.Store
	Locks   usecase.LockProvider
	Health  services.ConnectionHealth
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Pipeline owns the three durable channels of one context. Committed outbox rows flow
// relay -> outbound -> forwarder -> transport. Deliveries from the other context flow
// sink -> inbound -> consumer.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *zap.Logger

	Inbound    *buffer.Channel
	Outbound   *buffer.Channel
	Deadletter *buffer.Channel

	relay   *services.OutboxRelay
	inbound *services.ChannelProcessor
	forward *services.ChannelProcessor
	sink    *services.ChannelPublisher
}

// newPipeline opens the channels and builds the inbound consumer with a publisher onto
// the outbound channel, for events that are not the result of a persisted change.
func newPipeline(cfg *config.Config, deps Deps, outbox repository.OutboxRepository, consumer func(outgoing usecase.Publisher) services.Consumer) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("service", cfg.App.Service))

	p := &Pipeline{cfg: cfg, deps: deps, logger: logger}
	var err error
	if p.Inbound, err = deps.Store.Channel(cfg.ChannelName(buffer.PurposeInbound)); err != nil {
		return nil, err
	}
	if p.Outbound, err = deps.Store.Channel(cfg.ChannelName(buffer.PurposeOutbound)); err != nil {
		return nil, err
	}
	if p.Deadletter, err = deps.Store.Channel(cfg.ChannelName(buffer.PurposeDeadletter)); err != nil {
		return nil, err
	}

	p.sink = services.NewChannelPublisher(p.Inbound)
	p.relay = services.NewOutboxRelay(outbox, p.Outbound, cfg.Outbox.RelayInterval, cfg.Outbox.BatchSize, logger)
	p.inbound = services.NewChannelProcessor(p.Inbound, p.Deadletter, consumer(services.NewChannelPublisher(p.Outbound)), deps.Health, deps.Metrics, logger, p.processorConfig())
	return p, nil
}

func (p *Pipeline) processorConfig() services.ProcessorConfig {
	c := p.cfg.Channels
	return services.ProcessorConfig{
		Interval:    c.PollInterval,
		BatchSize:   c.BatchSize,
		Workers:     c.Workers,
		MaxRetries:  c.MaxRetry,
		BackoffBase: c.BackoffBase,
		BackoffMax:  c.BackoffMax,
		Retention:   time.Duration(c.RetentionHours) * time.Hour,
	}
}

// Sink accepts deliveries from the other context into the inbound channel.
func (p *Pipeline) Sink() *services.ChannelPublisher { return p.sink }

// ForwardTo sets the transport outbound events are delivered to.
func (p *Pipeline) ForwardTo(transport usecase.Publisher) {
	forwarder := services.NewForwarder(p.cfg.App.Service, transport, p.deps.Metrics, p.logger)
	p.forward = services.NewChannelProcessor(p.Outbound, p.Deadletter, forwarder, nil, p.deps.Metrics, p.logger, p.processorConfig())
}

// Channels lists the channels for the connection monitor.
func (p *Pipeline) Channels() []*buffer.Channel {
	return []*buffer.Channel{p.Inbound, p.Outbound, p.Deadletter}
}

func (p *Pipeline) Start() {
	p.relay.Start()
	p.inbound.Start()
	if p.forward != nil {
		p.forward.Start()
	}
}

func (p *Pipeline) Stop(ctx context.Context) error {
	var err error
	err = errors.Join(err, p.relay.Stop(ctx))
	err = errors.Join(err, p.inbound.Stop(ctx))
	if p.forward != nil {
		err = errors.Join(err, p.forward.Stop(ctx))
	}
	return err
}

// Pump runs one relay, forward and consume round synchronously and reports whether
// anything moved.
func (p *Pipeline) Pump(ctx context.Context) (bool, error) {
	relayed, err := p.relay.Relay(ctx)
	if err != nil {
		return false, err
	}
	forwarded := 0
	if p.forward != nil {
		if forwarded, err = p.forward.Drain(ctx); err != nil {
			return false, err
		}
	}
	consumed, err := p.inbound.Drain(ctx)
	if err != nil {
		return false, err
	}
	return relayed+forwarded+consumed > 0, nil
}
