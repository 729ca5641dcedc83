package usecase

import (
	"context"

	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

// StatsUseCase exposes read-only aggregates for metrics gauges.
type StatsUseCase struct {
	subRepo repository.SubscriptionRepository
}

func NewStatsUseCase(subRepo repository.SubscriptionRepository) *StatsUseCase {
	return &StatsUseCase{subRepo: subRepo}
}

func (uc *StatsUseCase) SubscriptionsByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return uc.subRepo.CountByStatus(ctx, repository.NoTX)
}
