package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-radar/internal/infra/metrics"
	"subscription-radar/internal/usecase"
)

// NotificationWorker periodically creates upcoming-payment notifications.
type NotificationWorker struct {
	interval time.Duration
	notifUC  *usecase.NotificationUseCase
	log      *zerolog.Logger
}

func NewNotificationWorker(interval time.Duration, notifUC *usecase.NotificationUseCase, logger *zerolog.Logger) *NotificationWorker {
	l := logger.With().Str("component", "NotificationWorker").Logger()
	return &NotificationWorker{interval: interval, notifUC: notifUC, log: &l}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting notification worker")
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notification worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *NotificationWorker) runOnce(ctx context.Context) {
	n, err := w.notifUC.GenerateUpcoming(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("notification generation failed")
		return
	}
	if n > 0 {
		metrics.AddNotificationsCreated(n)
		w.log.Info().Int("count", n).Msg("upcoming notifications created")
	}
}
