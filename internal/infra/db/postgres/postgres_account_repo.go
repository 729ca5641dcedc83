package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, user_id, name, institution, type, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,now());`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.UserID, a.Name, a.Institution, a.Type, a.Currency)
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

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Account, error) {
	const q = `
SELECT id, user_id, name, institution, type, currency, created_at
  FROM accounts
 WHERE id=$1 AND user_id=$2;`

	row, err := pickRow(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return nil, err
	}
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *accountRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Account, error) {
	const q = `
SELECT id, user_id, name, institution, type, currency, created_at
  FROM accounts
 WHERE user_id=$1
 ORDER BY created_at ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	var accType string
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Institution, &accType, &a.Currency, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Type = model.AccountType(accType)
	return a, nil
}
