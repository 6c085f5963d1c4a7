package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/banking/internal/infrastructure/buffer"
	"github.com/fastygo/banking/repository"
)

// OutboxRelay moves committed outbox rows into the outbound channel. A row is marked
// published only after the channel has it, so a crash in between only duplicates.
type OutboxRelay struct {
	outbox    repository.OutboxRepository
	outbound  *buffer.Channel
	logger    *zap.Logger
	cron      *cron.Cron
	batchSize int
}

func NewOutboxRelay(outbox repository.OutboxRepository, outbound *buffer.Channel, interval time.Duration, batchSize int, logger *zap.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &OutboxRelay{
		outbox:    outbox,
		outbound:  outbound,
		logger:    logger,
		batchSize: repository.ClampLimit(batchSize),
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	_, _ = r.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*interval)
		defer cancel()
		if _, err := r.Relay(ctx); err != nil {
			r.logger.Error("outbox relay failed", zap.Error(err))
		}
	})
	return r
}

func (r *OutboxRelay) Start() {
	r.cron.Start()
	r.logger.Info("outbox relay started")
}

func (r *OutboxRelay) Stop(ctx context.Context) error {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Relay copies one page of pending messages and returns how many moved.
func (r *OutboxRelay) Relay(ctx context.Context) (int, error) {
	pending, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(pending))
	for _, msg := range pending {
		item := buffer.Item{
			ID:        msg.ID,
			Key:       msg.AggregateID,
			Name:      msg.Context + "." + msg.EventName,
			Data:      msg.Payload,
			Timestamp: msg.CreatedAt,
		}
		if err := r.outbound.Enqueue(item); err != nil {
			// Keep what already made it so ordering per aggregate is preserved.
			if markErr := r.markPublished(ctx, ids); markErr != nil {
				return 0, markErr
			}
			return len(ids), fmt.Errorf("enqueue outbox message %s: %w", msg.ID, err)
		}
		ids = append(ids, msg.ID)
	}
	if err := r.markPublished(ctx, ids); err != nil {
		return 0, err
	}
	r.logger.Debug("outbox relayed", zap.Int("count", len(ids)))
	return len(ids), nil
}

func (r *OutboxRelay) markPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.outbox.MarkPublished(ctx, ids)
}
