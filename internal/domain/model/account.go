package model

import "time"

type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeCredit   AccountType = "credit"
	AccountTypeOther    AccountType = "other"
)

// Account is a bank account owned by a user. Transactions belong to accounts;
// detection scopes its window through this ownership chain.
type Account struct {
	ID          string // UUID
	UserID      string
	Name        string
	Institution string
	Type        AccountType
	Currency    *string
	CreatedAt   time.Time
}
