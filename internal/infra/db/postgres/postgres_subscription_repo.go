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

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionColumns = `id, user_id, merchant, amount, currency, cadence, cadence_days,
  last_transaction_date, next_payment_date, status, confidence,
  first_detected_at, last_seen_at, created_at, updated_at`

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, merchant, amount, currency, cadence, cadence_days,
  last_transaction_date, next_payment_date, status, confidence,
  first_detected_at, last_seen_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now());`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.Merchant, s.Amount, s.Currency, s.Cadence, s.CadenceDays,
		s.LastTransactionDate, s.NextPaymentDate, s.Status, s.Confidence,
		s.FirstDetectedAt, s.LastSeenAt)
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

// Upsert inserts or replaces by the natural key (user_id, merchant, amount,
// cadence). first_detected_at is never overwritten for an existing row.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) (*model.Subscription, error) {
	const q = `
INSERT INTO subscriptions (
  id, user_id, merchant, amount, currency, cadence, cadence_days,
  last_transaction_date, next_payment_date, status, confidence,
  first_detected_at, last_seen_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
ON CONFLICT (user_id, merchant, amount, cadence) DO UPDATE SET
  currency=EXCLUDED.currency,
  cadence_days=EXCLUDED.cadence_days,
  last_transaction_date=EXCLUDED.last_transaction_date,
  next_payment_date=EXCLUDED.next_payment_date,
  status=EXCLUDED.status,
  confidence=EXCLUDED.confidence,
  last_seen_at=EXCLUDED.last_seen_at,
  updated_at=now()
RETURNING ` + subscriptionColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.Merchant, s.Amount, s.Currency, s.Cadence, s.CadenceDays,
		s.LastTransactionDate, s.NextPaymentDate, s.Status, s.Confidence,
		s.FirstDetectedAt, s.LastSeenAt)
	if err != nil {
		return nil, err
	}
	out, err := scanSubscription(row)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *subscriptionRepo) FindByNaturalKey(ctx context.Context, tx repository.Tx, userID, merchant string, amount float64, cadence model.Cadence) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND merchant=$2 AND amount=$3 AND cadence=$4
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID, merchant, amount, cadence)
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE id=$1 AND user_id=$2;`
	return r.queryOne(ctx, tx, q, id, userID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1
 ORDER BY next_payment_date ASC NULLS LAST;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListUpcoming(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='active'
   AND next_payment_date >= $2 AND next_payment_date <= $3
 ORDER BY next_payment_date ASC;`
	return r.queryMany(ctx, tx, q, userID, from, to)
}

func (r *subscriptionRepo) ListUpcomingAll(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='active'
   AND next_payment_date >= $1 AND next_payment_date <= $2
 ORDER BY next_payment_date ASC;`
	return r.queryMany(ctx, tx, q, from, to)
}

// UpdateDetectionFields applies the decay sweep's confidence/status change.
// Nil fields keep the stored value.
func (r *subscriptionRepo) UpdateDetectionFields(ctx context.Context, tx repository.Tx, userID, id string, upd repository.SubscriptionDetectionUpdate) error {
	const q = `
UPDATE subscriptions
   SET confidence = COALESCE($3, confidence),
       status     = COALESCE($4, status),
       updated_at = now()
 WHERE id=$1 AND user_id=$2;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, userID, upd.Confidence, upd.Status)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) Update(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
UPDATE subscriptions
   SET merchant=$3, amount=$4, currency=$5, cadence=$6, cadence_days=$7,
       last_transaction_date=$8, next_payment_date=$9, status=$10,
       confidence=$11, last_seen_at=$12, updated_at=now()
 WHERE id=$1 AND user_id=$2;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.Merchant, s.Amount, s.Currency, s.Cadence, s.CadenceDays,
		s.LastTransactionDate, s.NextPaymentDate, s.Status, s.Confidence, s.LastSeenAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	const q = `DELETE FROM subscriptions WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) ([]*model.Subscription, error) {
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

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var cadence, status string
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Merchant, &s.Amount, &s.Currency, &cadence, &s.CadenceDays,
		&s.LastTransactionDate, &s.NextPaymentDate, &status, &s.Confidence,
		&s.FirstDetectedAt, &s.LastSeenAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Cadence = model.Cadence(cadence)
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
