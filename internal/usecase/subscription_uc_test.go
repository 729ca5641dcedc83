package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
)

func newSubscriptionForTest(subs *memSubscriptionRepo, detection *DetectionUseCase, now time.Time) *SubscriptionUseCase {
	uc := NewSubscriptionUseCase(subs, detection, newTestLogger())
	uc.now = func() time.Time { return now }
	return uc
}

func TestSubscriptionUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a manual subscription with derived fields", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		uc := newSubscriptionForTest(subs, nil, day("2024-03-01"))

		last := day("2024-02-20")
		sub, err := uc.Create(ctx, "user-1", CreateSubscriptionInput{
			Merchant:            "Netflix",
			Amount:              15.991,
			Cadence:             model.CadenceMonthly,
			LastTransactionDate: &last,
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.CadenceDays != 30 {
			t.Errorf("expected cadence_days defaulted to 30, got %d", sub.CadenceDays)
		}
		if sub.Amount != 15.99 {
			t.Errorf("expected amount rounded to 15.99, got %v", sub.Amount)
		}
		if sub.NextPaymentDate == nil || !sub.NextPaymentDate.Equal(day("2024-03-21")) {
			t.Errorf("expected next payment 2024-03-21, got %v", sub.NextPaymentDate)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected active status, got %s", sub.Status)
		}
		if sub.Confidence != 1 {
			t.Errorf("expected confidence 1 for a manual entry, got %v", sub.Confidence)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		uc := newSubscriptionForTest(newMemSubscriptionRepo(), nil, day("2024-03-01"))

		cases := []CreateSubscriptionInput{
			{Merchant: "", Amount: 10, Cadence: model.CadenceMonthly},
			{Merchant: "X", Amount: 0, Cadence: model.CadenceMonthly},
			{Merchant: "X", Amount: -5, Cadence: model.CadenceMonthly},
			{Merchant: "X", Amount: 10, Cadence: "fortnightly"},
			{Merchant: "X", Amount: 10, Cadence: model.CadenceMonthly, Status: "bogus"},
		}
		for i, in := range cases {
			if _, err := uc.Create(ctx, "user-1", in); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("case %d: expected ErrInvalidArgument, got %v", i, err)
			}
		}
	})

	t.Run("should surface a natural key conflict", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		uc := newSubscriptionForTest(subs, nil, day("2024-03-01"))
		in := CreateSubscriptionInput{Merchant: "Netflix", Amount: 15.99, Cadence: model.CadenceMonthly}

		if _, err := uc.Create(ctx, "user-1", in); err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		if _, err := uc.Create(ctx, "user-1", in); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_Update(t *testing.T) {
	ctx := context.Background()

	seed := func(uc *SubscriptionUseCase) *model.Subscription {
		last := day("2024-02-01")
		sub, err := uc.Create(ctx, "user-1", CreateSubscriptionInput{
			Merchant:            "Gym",
			Amount:              50,
			Cadence:             model.CadenceMonthly,
			LastTransactionDate: &last,
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		return sub
	}

	t.Run("should recompute next payment when cadence changes", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		uc := newSubscriptionForTest(subs, nil, day("2024-02-10"))
		sub := seed(uc)

		weekly := model.CadenceWeekly
		got, err := uc.Update(ctx, "user-1", sub.ID, UpdateSubscriptionInput{Cadence: &weekly})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got.CadenceDays != 7 {
			t.Errorf("expected cadence_days 7, got %d", got.CadenceDays)
		}
		if got.NextPaymentDate == nil || !got.NextPaymentDate.Equal(day("2024-02-08")) {
			t.Errorf("expected next payment 2024-02-08, got %v", got.NextPaymentDate)
		}
	})

	t.Run("should honor an explicit next payment date over derivation", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		uc := newSubscriptionForTest(subs, nil, day("2024-02-10"))
		sub := seed(uc)

		weekly := model.CadenceWeekly
		next := day("2024-06-01")
		got, err := uc.Update(ctx, "user-1", sub.ID, UpdateSubscriptionInput{Cadence: &weekly, NextPaymentDate: &next})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !got.NextPaymentDate.Equal(day("2024-06-01")) {
			t.Errorf("explicit next payment overridden: %v", got.NextPaymentDate)
		}
	})

	t.Run("should return not found for another user's subscription", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		uc := newSubscriptionForTest(subs, nil, day("2024-02-10"))
		sub := seed(uc)

		amount := 60.0
		if _, err := uc.Update(ctx, "user-2", sub.ID, UpdateSubscriptionInput{Amount: &amount}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_Upcoming(t *testing.T) {
	ctx := context.Background()
	subs := newMemSubscriptionRepo()
	uc := newSubscriptionForTest(subs, nil, day("2024-03-01"))

	add := func(id, merchant, next string, status model.SubscriptionStatus) {
		n := day(next)
		subs.store[id] = &model.Subscription{
			ID: id, UserID: "user-1", Merchant: merchant, Amount: 10,
			Cadence: model.CadenceMonthly, CadenceDays: 30,
			NextPaymentDate: &n, Status: status,
		}
	}
	add("s1", "due soon", "2024-03-10", model.SubscriptionStatusActive)
	add("s2", "due late", "2024-05-01", model.SubscriptionStatusActive)
	add("s3", "paused", "2024-03-10", model.SubscriptionStatusPaused)

	got, err := uc.Upcoming(ctx, "user-1", 30)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("expected only s1 upcoming, got %+v", got)
	}
}

func TestSubscriptionUseCase_Recompute(t *testing.T) {
	ctx := context.Background()
	txns := newMemTransactionRepo()
	subs := newMemSubscriptionRepo()
	addMonthlyCharges(txns, "user-1", "Spotify", 9.99, "2024-01-05", "2024-02-05", "2024-03-05")
	detection := newDetectionForTest(txns, subs, nil, day("2024-03-10"))
	uc := newSubscriptionForTest(subs, detection, day("2024-03-10"))

	res, err := uc.Recompute(ctx, "user-1", DetectionOptions{})
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if res.Detected != 1 {
		t.Fatalf("expected 1 detected via recompute, got %d", res.Detected)
	}
	if subs.byNaturalKey("user-1", "Spotify", 9.99, model.CadenceMonthly) == nil {
		t.Fatal("expected subscription persisted")
	}
}
