package repository

import (
	"context"

	"subscription-radar/internal/domain/model"
)

type AccountRepository interface {
	Create(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, userID, id string) (*model.Account, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Account, error)
}
