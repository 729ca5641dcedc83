package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

// CreateSubscriptionInput is a manually entered subscription. CadenceDays and
// NextPaymentDate are derived when omitted.
type CreateSubscriptionInput struct {
	Merchant            string
	Amount              float64
	Currency            *string
	Cadence             model.Cadence
	CadenceDays         int
	LastTransactionDate *time.Time
	NextPaymentDate     *time.Time
	Status              model.SubscriptionStatus
}

type UpdateSubscriptionInput struct {
	Merchant            *string
	Amount              *float64
	Cadence             *model.Cadence
	CadenceDays         *int
	LastTransactionDate *time.Time
	NextPaymentDate     *time.Time
	Status              *model.SubscriptionStatus
}

// SubscriptionUseCase implements the manual subscription surface plus the
// recompute entry point that delegates to the detection engine.
type SubscriptionUseCase struct {
	subRepo   repository.SubscriptionRepository
	detection *DetectionUseCase
	log       *zerolog.Logger
	now       func() time.Time
}

func NewSubscriptionUseCase(subRepo repository.SubscriptionRepository, detection *DetectionUseCase, logger *zerolog.Logger) *SubscriptionUseCase {
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &SubscriptionUseCase{subRepo: subRepo, detection: detection, log: &l, now: time.Now}
}

func (uc *SubscriptionUseCase) Create(ctx context.Context, userID string, in CreateSubscriptionInput) (*model.Subscription, error) {
	if userID == "" || in.Merchant == "" || in.Amount <= 0 || !in.Cadence.Valid() {
		return nil, domain.ErrInvalidArgument
	}

	cadenceDays := in.CadenceDays
	if cadenceDays <= 0 {
		cadenceDays = model.CadenceDays[in.Cadence]
	}
	next := in.NextPaymentDate
	if next == nil && in.LastTransactionDate != nil {
		n := model.ComputeNextPaymentDate(*in.LastTransactionDate, cadenceDays)
		next = &n
	}
	status := in.Status
	if status == "" {
		status = model.SubscriptionStatusActive
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidArgument
	}

	now := uc.now()
	sub := &model.Subscription{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Merchant:            in.Merchant,
		Amount:              round2(in.Amount),
		Currency:            in.Currency,
		Cadence:             in.Cadence,
		CadenceDays:         cadenceDays,
		LastTransactionDate: in.LastTransactionDate,
		NextPaymentDate:     next,
		Status:              status,
		Confidence:          1, // user-asserted, not inferred
		FirstDetectedAt:     now,
	}
	if err := uc.subRepo.Create(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (uc *SubscriptionUseCase) List(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return uc.subRepo.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *SubscriptionUseCase) Get(ctx context.Context, userID, id string) (*model.Subscription, error) {
	return uc.subRepo.FindByID(ctx, repository.NoTX, userID, id)
}

// Upcoming lists active subscriptions whose next payment falls within the
// next `days` days.
func (uc *SubscriptionUseCase) Upcoming(ctx context.Context, userID string, days int) ([]*model.Subscription, error) {
	if days <= 0 {
		days = 30
	}
	from := model.DateOnly(uc.now())
	to := from.AddDate(0, 0, days)
	return uc.subRepo.ListUpcoming(ctx, repository.NoTX, userID, from, to)
}

func (uc *SubscriptionUseCase) Update(ctx context.Context, userID, id string, in UpdateSubscriptionInput) (*model.Subscription, error) {
	sub, err := uc.subRepo.FindByID(ctx, repository.NoTX, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Merchant != nil {
		if *in.Merchant == "" {
			return nil, domain.ErrInvalidArgument
		}
		sub.Merchant = *in.Merchant
	}
	if in.Amount != nil {
		if *in.Amount <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		sub.Amount = round2(*in.Amount)
	}
	if in.Cadence != nil {
		if !in.Cadence.Valid() {
			return nil, domain.ErrInvalidArgument
		}
		sub.Cadence = *in.Cadence
		sub.CadenceDays = model.CadenceDays[*in.Cadence]
	}
	if in.CadenceDays != nil && *in.CadenceDays > 0 {
		sub.CadenceDays = *in.CadenceDays
	}
	if in.LastTransactionDate != nil {
		d := model.DateOnly(*in.LastTransactionDate)
		sub.LastTransactionDate = &d
	}
	switch {
	case in.NextPaymentDate != nil:
		d := model.DateOnly(*in.NextPaymentDate)
		sub.NextPaymentDate = &d
	case sub.LastTransactionDate != nil && (in.Cadence != nil || in.CadenceDays != nil || in.LastTransactionDate != nil):
		n := model.ComputeNextPaymentDate(*sub.LastTransactionDate, sub.CadenceDays)
		sub.NextPaymentDate = &n
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, domain.ErrInvalidArgument
		}
		sub.Status = *in.Status
	}

	if err := uc.subRepo.Update(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (uc *SubscriptionUseCase) Delete(ctx context.Context, userID, id string) error {
	return uc.subRepo.Delete(ctx, repository.NoTX, userID, id)
}

// Recompute runs the detection engine for the user on demand.
func (uc *SubscriptionUseCase) Recompute(ctx context.Context, userID string, opts DetectionOptions) (*DetectionResult, error) {
	return uc.detection.Detect(ctx, userID, opts)
}
