// Package memory keeps aggregates in process memory. It backs the tests and the
// STORAGE_DRIVER=memory mode of both services.
package memory

import (
	"context"
	"sync"

	"github.com/fastygo/banking/repository"
)

// Outbox is an in-memory repository.OutboxRepository. Stores share it with their
// state so an upsert writes both under one lock.
type Outbox struct {
	mu      *sync.RWMutex
	pending []repository.OutboxMessage
}

func newOutbox(mu *sync.RWMutex) *Outbox {
	return &Outbox{mu: mu}
}

// Pending returns up to limit unpublished messages in write order.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]repository.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()

	limit = repository.ClampLimit(limit)
	if limit > len(o.pending) {
		limit = len(o.pending)
	}
	out := make([]repository.OutboxMessage, limit)
	copy(out, o.pending[:limit])
	return out, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.pending[:0]
	for _, msg := range o.pending {
		if _, ok := done[msg.ID]; !ok {
			kept = append(kept, msg)
		}
	}
	o.pending = kept
	return nil
}

// append must be called with mu held.
func (o *Outbox) append(msgs []repository.OutboxMessage) {
	o.pending = append(o.pending, msgs...)
}
