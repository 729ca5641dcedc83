package model

import (
	"testing"
	"time"
)

func TestDateOnly(t *testing.T) {
	// 23:45 at UTC+5 is 18:45 UTC on the same calendar day.
	in := time.Date(2024, 3, 3, 23, 45, 12, 0, time.FixedZone("UTC+5", 5*3600))
	got := DateOnly(in)
	want := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly(%v) = %v, want %v", in, got, want)
	}
}

func TestComputeNextPaymentDate(t *testing.T) {
	last := time.Date(2024, 3, 3, 15, 30, 0, 0, time.UTC)
	got := ComputeNextPaymentDate(last, 30)
	want := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCadenceValid(t *testing.T) {
	for _, c := range []Cadence{CadenceWeekly, CadenceBiweekly, CadenceMonthly, CadenceQuarterly, CadenceYearly} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Cadence("daily").Valid() {
		t.Error("daily should be invalid")
	}
	if CadenceDays[CadenceMonthly] != 30 || CadenceDays[CadenceYearly] != 365 {
		t.Error("cadence day table mismatch")
	}
}

func TestSubscriptionStatusValid(t *testing.T) {
	for _, s := range []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusPaused, SubscriptionStatusCanceled, SubscriptionStatusInactive} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if SubscriptionStatus("expired").Valid() {
		t.Error("expired should be invalid")
	}
}
