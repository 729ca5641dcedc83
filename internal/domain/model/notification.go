package model

import "time"

type NotificationType string

const (
	NotificationTypeSubscriptionUpcoming NotificationType = "subscription_upcoming"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusRead    NotificationStatus = "read"
)

// Notification is a scheduled heads-up about an upcoming subscription charge.
// At most one notification exists per (subscription, due day).
type Notification struct {
	ID             string // ULID
	UserID         string
	SubscriptionID string
	Type           NotificationType
	Content        string
	Status         NotificationStatus
	ScheduledAt    time.Time
	CreatedAt      time.Time
}
