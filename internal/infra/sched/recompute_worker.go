package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/ports/repository"
	"subscription-radar/internal/infra/metrics"
	"subscription-radar/internal/usecase"
)

// RecomputeWorker periodically re-runs subscription detection for every user.
// A run is also executed immediately at startup so a fresh deployment does not
// wait a full interval for its first sweep.
type RecomputeWorker struct {
	interval time.Duration
	users    repository.UserRepository
	detect   *usecase.DetectionUseCase
	stats    *usecase.StatsUseCase
	opts     usecase.DetectionOptions
	log      *zerolog.Logger
}

func NewRecomputeWorker(interval time.Duration, users repository.UserRepository, detect *usecase.DetectionUseCase, stats *usecase.StatsUseCase, opts usecase.DetectionOptions, logger *zerolog.Logger) *RecomputeWorker {
	l := logger.With().Str("component", "RecomputeWorker").Logger()
	return &RecomputeWorker{
		interval: interval,
		users:    users,
		detect:   detect,
		stats:    stats,
		opts:     opts,
		log:      &l,
	}
}

func (w *RecomputeWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting recompute worker")
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping recompute worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RecomputeWorker) runOnce(ctx context.Context) {
	ids, err := w.users.ListIDs(ctx, repository.NoTX)
	if err != nil {
		w.log.Error().Err(err).Msg("list users failed")
		return
	}

	var detected, decayed, inactivated int
	for _, userID := range ids {
		start := time.Now()
		res, err := w.detect.Detect(ctx, userID, w.opts)
		if err != nil {
			if errors.Is(err, domain.ErrDetectionInProgress) {
				metrics.IncDetectionRun("locked")
				w.log.Debug().Str("user_id", userID).Msg("detection already running, skipped")
				continue
			}
			metrics.IncDetectionRun("error")
			w.log.Error().Err(err).Str("user_id", userID).Msg("detection failed")
			continue
		}
		metrics.IncDetectionRun("ok")
		metrics.ObserveDetectionRunDuration(time.Since(start))
		metrics.AddDetectionCandidates(res.Detected)
		for _, rej := range res.Rejected {
			metrics.IncDetectionRejected(string(rej.Reason))
		}
		metrics.AddSubscriptionsDecayed(res.Decayed)
		metrics.AddSubscriptionsInactivated(res.Inactivated)

		detected += res.Detected
		decayed += res.Decayed
		inactivated += res.Inactivated
	}

	if counts, err := w.stats.SubscriptionsByStatus(ctx); err == nil {
		metrics.SetSubscriptionsTotal(counts)
	}

	w.log.Info().
		Int("users", len(ids)).
		Int("detected", detected).
		Int("decayed", decayed).
		Int("inactivated", inactivated).
		Msg("recompute sweep finished")
}
