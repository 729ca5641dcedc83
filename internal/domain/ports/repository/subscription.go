package repository

import (
	"context"
	"time"

	"subscription-radar/internal/domain/model"
)

// SubscriptionDetectionUpdate carries the fields the decay sweep may change.
// Nil fields are left untouched by the store.
type SubscriptionDetectionUpdate struct {
	Confidence *float64
	Status     *model.SubscriptionStatus
}

// SubscriptionRepository is the port for tracked subscriptions. Upsert keys on
// the natural identity (user_id, merchant, amount, cadence), which is what
// makes repeated detection runs idempotent.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, sub *model.Subscription) error
	Upsert(ctx context.Context, tx Tx, sub *model.Subscription) (*model.Subscription, error)
	FindByNaturalKey(ctx context.Context, tx Tx, userID, merchant string, amount float64, cadence model.Cadence) (*model.Subscription, error)
	FindByID(ctx context.Context, tx Tx, userID, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	ListUpcoming(ctx context.Context, tx Tx, userID string, from, to time.Time) ([]*model.Subscription, error)
	ListUpcomingAll(ctx context.Context, tx Tx, from, to time.Time) ([]*model.Subscription, error)
	UpdateDetectionFields(ctx context.Context, tx Tx, userID, id string, upd SubscriptionDetectionUpdate) error
	Update(ctx context.Context, tx Tx, sub *model.Subscription) error
	Delete(ctx context.Context, tx Tx, userID, id string) error
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
