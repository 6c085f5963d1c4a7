package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/banking/repository"
)

type outboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository reads the outbox table written by the aggregate repositories.
func NewOutboxRepository(pool *pgxpool.Pool) repository.OutboxRepository {
	return &outboxRepository{pool: pool}
}

func (r *outboxRepository) Pending(ctx context.Context, limit int) ([]repository.OutboxMessage, error) {
	const query = `
	SELECT id, aggregate_id, context, event_name, payload, created_at
	FROM outbox
	WHERE published_at IS NULL
	ORDER BY seq
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, repository.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []repository.OutboxMessage
	for rows.Next() {
		var msg repository.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateID, &msg.Context, &msg.EventName, &msg.Payload, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *outboxRepository) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE outbox SET published_at = NOW() WHERE id = ANY($1) AND published_at IS NULL`
	_, err := r.pool.Exec(ctx, query, ids)
	return err
}
