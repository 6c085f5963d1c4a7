package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/repository"
)

const uniqueViolation = "23505"

type scanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

// inTx runs fn in a transaction and commits when it returns nil.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// checkVersion turns a write that matched no row into a version conflict.
func checkVersion(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, msgs []repository.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	const query = `
	INSERT INTO outbox (id, aggregate_id, context, event_name, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	batch := &pgx.Batch{}
	for _, msg := range msgs {
		batch.Queue(query, msg.ID, msg.AggregateID, msg.Context, msg.EventName, msg.Payload, msg.CreatedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}
