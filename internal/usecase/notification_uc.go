package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

const DefaultUpcomingWindowDays = 7

// NotificationUseCase schedules upcoming-payment notifications for active
// subscriptions, at most one per (subscription, due day).
type NotificationUseCase struct {
	subRepo    repository.SubscriptionRepository
	notifRepo  repository.NotificationRepository
	windowDays int
	log        *zerolog.Logger
	now        func() time.Time
}

func NewNotificationUseCase(subRepo repository.SubscriptionRepository, notifRepo repository.NotificationRepository, windowDays int, logger *zerolog.Logger) *NotificationUseCase {
	if windowDays <= 0 {
		windowDays = DefaultUpcomingWindowDays
	}
	l := logger.With().Str("component", "NotificationUseCase").Logger()
	return &NotificationUseCase{
		subRepo:    subRepo,
		notifRepo:  notifRepo,
		windowDays: windowDays,
		log:        &l,
		now:        time.Now,
	}
}

// GenerateUpcoming scans every user's active subscriptions due within the
// window and creates pending notifications for the ones not yet covered.
// Returns the number of notifications created.
func (uc *NotificationUseCase) GenerateUpcoming(ctx context.Context) (int, error) {
	from := model.DateOnly(uc.now())
	to := from.AddDate(0, 0, uc.windowDays)

	subs, err := uc.subRepo.ListUpcomingAll(ctx, repository.NoTX, from, to)
	if err != nil {
		return 0, fmt.Errorf("list upcoming subscriptions: %w", err)
	}

	created := 0
	for _, sub := range subs {
		if sub.NextPaymentDate == nil {
			continue
		}
		due := model.DateOnly(*sub.NextPaymentDate)
		exists, err := uc.notifRepo.ExistsForSubscriptionOn(ctx, repository.NoTX, sub.ID, due)
		if err != nil {
			return created, fmt.Errorf("check notification: %w", err)
		}
		if exists {
			continue
		}
		n := &model.Notification{
			ID:             ulid.Make().String(),
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			Type:           model.NotificationTypeSubscriptionUpcoming,
			Content:        fmt.Sprintf("%s is due on %s", sub.Merchant, due.Format("2006-01-02")),
			Status:         model.NotificationStatusPending,
			ScheduledAt:    due,
		}
		if err := uc.notifRepo.Create(ctx, repository.NoTX, n); err != nil {
			return created, fmt.Errorf("create notification: %w", err)
		}
		created++
	}
	return created, nil
}

func (uc *NotificationUseCase) List(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return uc.notifRepo.ListByUser(ctx, repository.NoTX, userID, limit)
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return domain.ErrInvalidArgument
	}
	return uc.notifRepo.UpdateStatus(ctx, repository.NoTX, userID, id, model.NotificationStatusRead)
}
