package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

const transactionColumns = `t.id, t.account_id, t.date, t.merchant, t.amount, t.currency, t.pending, t.created_at`

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (id, account_id, date, merchant, amount, currency, pending, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now());`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.AccountID, t.Date, t.Merchant, t.Amount, t.Currency, t.Pending)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		case isUniqueViolation(err):
			return domain.ErrAlreadyExists
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

// ListForDetection returns the user's transactions across all accounts since
// the given date, date ascending. No pending/transfer filtering: recurring
// transfers are valid subscription candidates.
func (r *transactionRepo) ListForDetection(ctx context.Context, tx repository.Tx, userID string, since time.Time) ([]model.Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
  FROM transactions t
  JOIN accounts a ON a.id = t.account_id
 WHERE a.user_id=$1 AND t.date >= $2
 ORDER BY t.date ASC, t.id ASC;`
	return r.queryMany(ctx, tx, q, userID, since)
}

func (r *transactionRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]model.Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
  FROM transactions t
 WHERE t.account_id=$1
 ORDER BY t.date DESC, t.id DESC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, accountID, limit)
}

func (r *transactionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) ([]model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Date, &t.Merchant, &t.Amount, &t.Currency, &t.Pending, &t.CreatedAt)
	return t, err
}
