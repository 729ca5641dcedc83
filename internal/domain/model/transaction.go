package model

import "time"

// Transaction is a single bank transaction as supplied by the transaction
// source. The detection engine consumes Date, Merchant, Amount and Currency;
// the remaining fields exist for the CRUD surface.
type Transaction struct {
	ID        string // UUID
	AccountID string
	Date      time.Time // date component only
	Merchant  *string
	Amount    float64 // signed; outflows negative
	Currency  *string
	Pending   bool
	CreatedAt time.Time
}
