package repository

import (
	"context"
	"time"

	"subscription-radar/internal/domain/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, tx Tx, n *model.Notification) error
	// ExistsForSubscriptionOn reports whether an upcoming-payment notification
	// is already scheduled for the subscription on the given day.
	ExistsForSubscriptionOn(ctx context.Context, tx Tx, subscriptionID string, day time.Time) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Notification, error)
	UpdateStatus(ctx context.Context, tx Tx, userID, id string, status model.NotificationStatus) error
	Delete(ctx context.Context, tx Tx, userID, id string) error
}
