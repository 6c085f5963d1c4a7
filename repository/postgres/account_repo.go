package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/repository"
)

const emailConstraint = "bank_accounts_email_key"

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a Postgres-backed AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) repository.AccountRepository {
	return &accountRepository{pool: pool}
}

// accountRow mirrors one bank_accounts row.
type accountRow struct {
	ID                   string
	Email                string
	Balance              string
	OpenedTransactions   []byte
	FinishedTransactions []byte
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func toAccountRow(acc account.BankAccount) (accountRow, error) {
	opened, err := json.Marshal(acc.OpenedTransactions)
	if err != nil {
		return accountRow{}, err
	}
	finished, err := json.Marshal(acc.FinishedTransactions)
	if err != nil {
		return accountRow{}, err
	}
	return accountRow{
		ID:                   acc.ID.String(),
		Email:                acc.Email,
		Balance:              acc.Balance.String(),
		OpenedTransactions:   opened,
		FinishedTransactions: finished,
		Version:              acc.Version,
		CreatedAt:            acc.CreatedAt,
		UpdatedAt:            acc.UpdatedAt,
	}, nil
}

func (r accountRow) toDomain() (account.BankAccount, error) {
	balance, err := decimal.NewFromString(r.Balance)
	if err != nil {
		return account.BankAccount{}, err
	}
	acc := account.BankAccount{
		ID:        domain.AggregateID(r.ID),
		Email:     r.Email,
		Balance:   balance,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(orEmptyArray(r.OpenedTransactions), &acc.OpenedTransactions); err != nil {
		return account.BankAccount{}, err
	}
	if err := json.Unmarshal(orEmptyArray(r.FinishedTransactions), &acc.FinishedTransactions); err != nil {
		return account.BankAccount{}, err
	}
	return acc, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id domain.AggregateID) (*account.BankAccount, error) {
	const query = `
	SELECT id, email, balance::text, opened_transactions, finished_transactions, version, created_at, updated_at
	FROM bank_accounts
	WHERE id = $1
	`
	var row accountRow
	if err := scanAccountRow(r.pool.QueryRow(ctx, query, id.String()), &row); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	acc, err := row.toDomain()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode bank account row", err)
	}
	return &acc, nil
}

func (r *accountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM bank_accounts WHERE lower(email) = lower($1))`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *accountRepository) Upsert(ctx context.Context, agg *account.Aggregate) (*account.BankAccount, error) {
	if agg == nil || !agg.Account.Exists() {
		return nil, domain.ErrInvalidPayload
	}
	msgs, err := repository.AccountOutbox(agg.Events())
	if err != nil {
		return nil, err
	}

	next := agg.Account.Clone()
	loaded := next.Version
	next.Version++
	row, err := toAccountRow(next)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "encode bank account row", err)
	}

	err = inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := writeAccount(ctx, tx, row, loaded); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, msgs)
	})
	if err != nil {
		if isUniqueViolation(err, emailConstraint) {
			return nil, domain.ErrEmailAlreadyExists
		}
		return nil, err
	}
	return &next, nil
}

func writeAccount(ctx context.Context, tx pgx.Tx, row accountRow, loaded int64) error {
	if loaded == 0 {
		const insert = `
		INSERT INTO bank_accounts (id, email, balance, opened_transactions, finished_transactions, version, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, insert,
			row.ID, row.Email, row.Balance, row.OpenedTransactions, row.FinishedTransactions,
			row.Version, row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return checkVersion(tag)
	}

	const update = `
	UPDATE bank_accounts
	SET email = $2,
		balance = $3::numeric,
		opened_transactions = $4,
		finished_transactions = $5,
		version = $6,
		updated_at = $7
	WHERE id = $1 AND version = $8
	`
	tag, err := tx.Exec(ctx, update,
		row.ID, row.Email, row.Balance, row.OpenedTransactions, row.FinishedTransactions,
		row.Version, row.UpdatedAt, loaded,
	)
	if err != nil {
		return err
	}
	return checkVersion(tag)
}

func scanAccountRow(row scanner, out *accountRow) error {
	return row.Scan(
		&out.ID,
		&out.Email,
		&out.Balance,
		&out.OpenedTransactions,
		&out.FinishedTransactions,
		&out.Version,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
}

func orEmptyArray(data []byte) []byte {
	if len(data) == 0 {
		return []byte("[]")
	}
	return data
}
