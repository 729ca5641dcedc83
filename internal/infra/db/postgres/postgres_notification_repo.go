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

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Create(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, subscription_id, type, content, status, scheduled_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now());`

	_, err := execSQL(ctx, r.pool, tx, q,
		n.ID, n.UserID, n.SubscriptionID, n.Type, n.Content, n.Status, n.ScheduledAt)
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

func (r *notificationRepo) ExistsForSubscriptionOn(ctx context.Context, tx repository.Tx, subscriptionID string, day time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1
    FROM notifications
   WHERE subscription_id=$1
     AND type=$2
     AND scheduled_at >= $3 AND scheduled_at < $4
);`
	start := day
	end := day.AddDate(0, 0, 1)
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, model.NotificationTypeSubscriptionUpcoming, start, end)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Notification, error) {
	const q = `
SELECT id, user_id, subscription_id, type, content, status, scheduled_at, created_at
  FROM notifications
 WHERE user_id=$1
 ORDER BY scheduled_at DESC
 LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *notificationRepo) UpdateStatus(ctx context.Context, tx repository.Tx, userID, id string, status model.NotificationStatus) error {
	const q = `UPDATE notifications SET status=$3 WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID, status)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *notificationRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	const q = `DELETE FROM notifications WHERE id=$1 AND user_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	n := &model.Notification{}
	var typ, status string
	if err := row.Scan(&n.ID, &n.UserID, &n.SubscriptionID, &typ, &n.Content, &status, &n.ScheduledAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = model.NotificationType(typ)
	n.Status = model.NotificationStatus(status)
	return n, nil
}
