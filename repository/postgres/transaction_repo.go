package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/transaction"
	"github.com/fastygo/banking/repository"
)

type transactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a Postgres-backed TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) repository.TransactionRepository {
	return &transactionRepository{pool: pool}
}

type transactionRow struct {
	ID                 string
	CorrelationID      string
	FromAccountID      string
	ToAccountID        string
	Amount             string
	Status             string
	FailedAt           *string
	FailureReason      string
	WithdrawRolledBack bool
	DepositRolledBack  bool
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func toTransactionRow(tx transaction.BankTransaction) transactionRow {
	row := transactionRow{
		ID:                 tx.ID.String(),
		CorrelationID:      tx.CorrelationID,
		FromAccountID:      tx.FromAccountID.String(),
		ToAccountID:        tx.ToAccountID.String(),
		Amount:             tx.Amount.String(),
		Status:             tx.Status.String(),
		FailureReason:      tx.FailureReason,
		WithdrawRolledBack: tx.WithdrawRolledBack,
		DepositRolledBack:  tx.DepositRolledBack,
		Version:            tx.Version,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
	}
	if tx.FailedAt != "" {
		failedAt := tx.FailedAt.String()
		row.FailedAt = &failedAt
	}
	return row
}

func (r transactionRow) toDomain() (transaction.BankTransaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return transaction.BankTransaction{}, err
	}
	status, err := transaction.ParseStatus(r.Status)
	if err != nil {
		return transaction.BankTransaction{}, err
	}
	tx := transaction.BankTransaction{
		ID:                 domain.AggregateID(r.ID),
		CorrelationID:      r.CorrelationID,
		FromAccountID:      domain.AggregateID(r.FromAccountID),
		ToAccountID:        domain.AggregateID(r.ToAccountID),
		Amount:             amount,
		Status:             status,
		FailureReason:      r.FailureReason,
		WithdrawRolledBack: r.WithdrawRolledBack,
		DepositRolledBack:  r.DepositRolledBack,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.FailedAt != nil {
		if tx.FailedAt, err = transaction.ParseStatus(*r.FailedAt); err != nil {
			return transaction.BankTransaction{}, err
		}
	}
	return tx, nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id domain.AggregateID) (*transaction.BankTransaction, error) {
	const query = `
	SELECT id, correlation_id, from_account_id, to_account_id, amount::text, status, failed_at,
		failure_reason, withdraw_rolled_back, deposit_rolled_back, version, created_at, updated_at
	FROM bank_transactions
	WHERE id = $1
	`
	var row transactionRow
	err := r.pool.QueryRow(ctx, query, id.String()).Scan(
		&row.ID,
		&row.CorrelationID,
		&row.FromAccountID,
		&row.ToAccountID,
		&row.Amount,
		&row.Status,
		&row.FailedAt,
		&row.FailureReason,
		&row.WithdrawRolledBack,
		&row.DepositRolledBack,
		&row.Version,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	tx, err := row.toDomain()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode bank transaction row", err)
	}
	return &tx, nil
}

func (r *transactionRepository) Upsert(ctx context.Context, agg *transaction.Aggregate) (*transaction.BankTransaction, error) {
	if agg == nil || !agg.Transaction.Exists() {
		return nil, domain.ErrInvalidPayload
	}
	msgs, err := repository.TransactionOutbox(agg.Events())
	if err != nil {
		return nil, err
	}

	next := agg.Transaction
	loaded := next.Version
	next.Version++
	row := toTransactionRow(next)

	err = inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := writeTransaction(ctx, tx, row, loaded); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, msgs)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func writeTransaction(ctx context.Context, tx pgx.Tx, row transactionRow, loaded int64) error {
	if loaded == 0 {
		const insert = `
		INSERT INTO bank_transactions (id, correlation_id, from_account_id, to_account_id, amount, status, failed_at,
			failure_reason, withdraw_rolled_back, deposit_rolled_back, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, insert,
			row.ID, row.CorrelationID, row.FromAccountID, row.ToAccountID, row.Amount, row.Status, row.FailedAt,
			row.FailureReason, row.WithdrawRolledBack, row.DepositRolledBack, row.Version, row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return checkVersion(tag)
	}

	const update = `
	UPDATE bank_transactions
	SET status = $2,
		failed_at = $3,
		failure_reason = $4,
		withdraw_rolled_back = $5,
		deposit_rolled_back = $6,
		version = $7,
		updated_at = $8
	WHERE id = $1 AND version = $9
	`
	tag, err := tx.Exec(ctx, update,
		row.ID, row.Status, row.FailedAt, row.FailureReason, row.WithdrawRolledBack, row.DepositRolledBack,
		row.Version, row.UpdatedAt, loaded,
	)
	if err != nil {
		return err
	}
	return checkVersion(tag)
}

type accountViewRepository struct {
	pool *pgxpool.Pool
}

// NewAccountViewRepository creates a Postgres-backed AccountViewRepository.
func NewAccountViewRepository(pool *pgxpool.Pool) repository.AccountViewRepository {
	return &accountViewRepository{pool: pool}
}

func (r *accountViewRepository) FindByID(ctx context.Context, id domain.AggregateID) (*repository.AccountView, error) {
	const query = `SELECT id, email, balance::text, updated_at FROM account_views WHERE id = $1`
	var (
		view    repository.AccountView
		rawID   string
		balance string
	)
	if err := r.pool.QueryRow(ctx, query, id.String()).Scan(&rawID, &view.Email, &balance, &view.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode account view balance", err)
	}
	view.ID = domain.AggregateID(rawID)
	view.Balance = amount
	return &view, nil
}

func (r *accountViewRepository) Upsert(ctx context.Context, view repository.AccountView) error {
	if view.ID.IsBlank() {
		return domain.ErrBlankAggregateID
	}
	const query = `
	INSERT INTO account_views (id, email, balance, updated_at)
	VALUES ($1, $2, $3::numeric, $4)
	ON CONFLICT (id) DO UPDATE
	SET email = COALESCE(NULLIF(EXCLUDED.email, ''), account_views.email),
		balance = EXCLUDED.balance,
		updated_at = EXCLUDED.updated_at
	WHERE account_views.updated_at <= EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, view.ID.String(), view.Email, view.Balance.String(), view.UpdatedAt)
	return err
}
