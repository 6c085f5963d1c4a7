package amqp

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Handler receives the body of one delivery. A nil error acknowledges the delivery;
// anything else sends it back to the queue.
type Handler func(ctx context.Context, body []byte) error

// Listener consumes a queue and reconnects with exponential back-off.
type Listener struct {
	consume              Consume
	minReconnectInterval time.Duration
	maxReconnectInterval time.Duration
	logger               *zap.Logger
	waitFn               func(context.Context, time.Duration)
}

func NewListener(consume Consume, minReconnect, maxReconnect time.Duration, logger *zap.Logger) (*Listener, error) {
	if consume == nil {
		return nil, errors.New("amqp: consume is required")
	}
	if minReconnect <= 0 {
		minReconnect = time.Second
	}
	if maxReconnect < minReconnect {
		maxReconnect = minReconnect
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		consume:              consume,
		minReconnectInterval: minReconnect,
		maxReconnectInterval: maxReconnect,
		logger:               logger,
		waitFn:               wait,
	}, nil
}

// WithWaitFn replaces the function used to wait between reconnects.
func (l *Listener) WithWaitFn(fn func(context.Context, time.Duration)) {
	l.waitFn = fn
}

// Listen blocks until ctx is done and returns context.Canceled.
func (l *Listener) Listen(ctx context.Context, handle Handler) error {
	reconnectInterval := l.minReconnectInterval
	for {
		if ctx.Err() != nil {
			return context.Canceled
		}

		conn, deliveries, err := l.consume()
		if err != nil {
			l.logger.Error("failed to start consuming amqp messages",
				zap.Error(err),
				zap.Duration("reconnect_in", reconnectInterval),
			)
			l.waitFn(ctx, reconnectInterval)
			reconnectInterval *= 2
			if reconnectInterval > l.maxReconnectInterval {
				reconnectInterval = l.maxReconnectInterval
			}
			continue
		}
		reconnectInterval = l.minReconnectInterval
		nextReconnect := time.Now().Add(reconnectInterval)

		l.consumeMessages(ctx, conn, deliveries, handle)

		if ctx.Err() != nil {
			return context.Canceled
		}
		l.waitFn(ctx, time.Until(nextReconnect))
	}
}

func (l *Listener) consumeMessages(ctx context.Context, conn io.Closer, deliveries <-chan amqp.Delivery, handle Handler) {
	defer func() {
		if conn == nil {
			return
		}
		if err := conn.Close(); err != nil {
			l.logger.Error("failed to close amqp connection", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}

			if err := handle(ctx, msg.Body); err != nil {
				l.logger.Error("failed to accept delivery, requeueing",
					zap.Error(err),
					zap.String("message_id", msg.MessageId),
					zap.String("routing_key", msg.RoutingKey),
				)
				if err := msg.Nack(false, true); err != nil {
					l.logger.Error("failed to nack delivery", zap.Error(err))
				}
				continue
			}

			if err := msg.Ack(false); err != nil {
				l.logger.Error("failed to acknowledge delivery",
					zap.Error(err),
					zap.String("message_id", msg.MessageId),
				)
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
