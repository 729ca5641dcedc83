package repository

import (
	"context"
	"time"

	"subscription-radar/internal/domain/model"
)

// TransactionRepository is the port for bank transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	// ListForDetection returns all of the user's transactions dated on or
	// after `since`, ordered by date ascending. Pending rows are included:
	// recurring transfers are valid subscription candidates.
	ListForDetection(ctx context.Context, tx Tx, userID string, since time.Time) ([]model.Transaction, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]model.Transaction, error)
}
