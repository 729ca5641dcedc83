package model

import "time"

// Cadence is the recurrence interval label assigned to a detected or
// manually created subscription.
type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceBiweekly  Cadence = "biweekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

// CadenceDays maps each cadence to its nominal period in days. Manual
// creation falls back to this table when cadence_days is not supplied.
var CadenceDays = map[Cadence]int{
	CadenceWeekly:    7,
	CadenceBiweekly:  14,
	CadenceMonthly:   30,
	CadenceQuarterly: 90,
	CadenceYearly:    365,
}

func (c Cadence) Valid() bool {
	_, ok := CadenceDays[c]
	return ok
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPaused,
		SubscriptionStatusCanceled, SubscriptionStatusInactive:
		return true
	}
	return false
}

// Subscription is a recurring charge tracked for a user. Detected
// subscriptions are identified across runs by the natural key
// (user_id, merchant, amount, cadence); the surrogate ID only names the row.
type Subscription struct {
	ID                  string // UUID
	UserID              string // UUID of user
	Merchant            string
	Amount              float64 // rounded to cents; part of the natural key
	Currency            *string
	Cadence             Cadence
	CadenceDays         int
	LastTransactionDate *time.Time // date component only (UTC midnight)
	NextPaymentDate     *time.Time
	Status              SubscriptionStatus
	Confidence          float64 // [0,1]
	FirstDetectedAt     time.Time
	LastSeenAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DateOnly truncates t to UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeNextPaymentDate projects the next expected charge date from the
// last observed transaction date.
func ComputeNextPaymentDate(last time.Time, cadenceDays int) time.Time {
	return DateOnly(last).AddDate(0, 0, cadenceDays)
}
