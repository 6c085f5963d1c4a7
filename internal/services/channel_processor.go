package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/internal/infrastructure/buffer"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Consumer handles one message drained from a channel.
type Consumer interface {
	Consume(ctx context.Context, msg usecase.Message) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, msg usecase.Message) error

func (f ConsumerFunc) Consume(ctx context.Context, msg usecase.Message) error { return f(ctx, msg) }

// ProcessorConfig controls how a channel is drained.
type ProcessorConfig struct {
	// Interval is scheduled with cron "@every" and so never runs faster than once a second.
	Interval    time.Duration
	BatchSize   int
	Workers     int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// Retention drops dead letters older than this. Zero keeps them forever.
	Retention time.Duration
}

// ChannelProcessor drains a durable channel into a Consumer. Items sharing a key are
// handled one after another; different keys run on up to Workers goroutines.
type ChannelProcessor struct {
	source     *buffer.Channel
	deadletter *buffer.Channel
	consumer   Consumer
	monitor    ConnectionHealth
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cron       *cron.Cron
	cfg        ProcessorConfig
	now        func() time.Time

	drainMu sync.Mutex
}

func NewChannelProcessor(
	source, deadletter *buffer.Channel,
	consumer Consumer,
	monitor ConnectionHealth,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *ChannelProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("channel", source.Name()))

	p := &ChannelProcessor{
		source:     source,
		deadletter: deadletter,
		consumer:   consumer,
		monitor:    monitor,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	_, _ = p.cron.AddFunc(fmt.Sprintf("@every %s", cfg.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*cfg.Interval)
		defer cancel()
		if _, err := p.Drain(ctx); err != nil {
			p.logger.Error("channel drain failed", zap.Error(err))
		}
	})
	if cfg.Retention > 0 && deadletter != nil {
		_, _ = p.cron.AddFunc("@every 1h", func() {
			removed, err := deadletter.Cleanup(p.now().Add(-cfg.Retention))
			if err != nil {
				p.logger.Warn("dead-letter cleanup failed", zap.Error(err))
				return
			}
			if removed > 0 {
				p.logger.Info("dead letters expired", zap.Int("removed", removed))
			}
		})
	}
	return p
}

// Start launches the cron scheduler.
func (p *ChannelProcessor) Start() {
	p.cron.Start()
	p.logger.Info("channel processor started", zap.Duration("interval", p.cfg.Interval))
}

// Stop waits for a running drain or for ctx.
func (p *ChannelProcessor) Stop(ctx context.Context) error {
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	p.logger.Info("channel processor stopped")
	return nil
}

// Drain processes one batch synchronously and returns how many items left the channel.
func (p *ChannelProcessor) Drain(ctx context.Context) (int, error) {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	if p.monitor != nil && !p.monitor.IsOnline() {
		p.logger.Debug("skipping channel drain (offline)")
		return 0, nil
	}

	items, err := p.source.GetBatch(p.cfg.BatchSize, p.now())
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	var order []string
	partitions := make(map[string][]buffer.Item)
	for _, item := range items {
		if _, ok := partitions[item.Key]; !ok {
			order = append(order, item.Key)
		}
		partitions[item.Key] = append(partitions[item.Key], item)
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, key := range order {
		batch := partitions[key]
		g.Go(func() error {
			n, err := p.drainPartition(gctx, batch)
			mu.Lock()
			done += n
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()
	return done, err
}

// drainPartition stops at the first item that has to wait for a retry so later items
// of the same key keep their order.
func (p *ChannelProcessor) drainPartition(ctx context.Context, items []buffer.Item) (int, error) {
	done := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return done, nil
		}
		left, err := p.process(ctx, item)
		if err != nil {
			return done, err
		}
		if !left {
			return done, nil
		}
		done++
	}
	return done, nil
}

// process reports whether the item left the channel.
func (p *ChannelProcessor) process(ctx context.Context, item buffer.Item) (bool, error) {
	lastAttempt := item.Retries+1 >= p.cfg.MaxRetries
	err := p.consumer.Consume(ctx, usecase.Message{
		ID:          item.ID,
		Body:        item.Data,
		Attempt:     item.Retries,
		LastAttempt: lastAttempt,
	})
	if err == nil {
		p.metrics.ChannelItem(p.source.Name(), metrics.OutcomeProcessed)
		return true, p.source.Remove(item)
	}

	item.LastError = err.Error()
	if domain.IsRetryable(err) && !lastAttempt {
		item.Retries++
		item.NotBefore = p.now().Add(p.backoff(item.Retries))
		p.logger.Warn("channel item failed, retrying",
			zap.String("item_id", item.ID),
			zap.String("name", item.Name),
			zap.Int("retries", item.Retries),
			zap.Time("not_before", item.NotBefore),
			zap.Error(err),
		)
		p.metrics.ChannelItem(p.source.Name(), metrics.OutcomeRetried)
		return false, p.source.Requeue(item)
	}

	p.logger.Error("channel item dead-lettered",
		zap.String("item_id", item.ID),
		zap.String("name", item.Name),
		zap.Int("retries", item.Retries),
		zap.String("code", string(domain.CodeOf(err))),
		zap.Error(err),
	)
	p.metrics.ChannelItem(p.source.Name(), metrics.OutcomeDeadlettered)
	if p.deadletter == nil {
		return true, p.source.Remove(item)
	}
	return true, p.source.MoveTo(item, p.deadletter)
}

func (p *ChannelProcessor) backoff(retries int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= p.cfg.BackoffMax {
			return p.cfg.BackoffMax
		}
	}
	return d
}

// Size returns the number of items waiting in the source channel.
func (p *ChannelProcessor) Size() int {
	size, err := p.source.Size()
	if err != nil {
		return 0
	}
	return size
}
