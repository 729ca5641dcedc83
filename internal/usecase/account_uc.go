package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

type CreateAccountInput struct {
	Name        string
	Institution string
	Type        model.AccountType
	Currency    *string
}

type AccountUseCase struct {
	accountRepo repository.AccountRepository
	now         func() time.Time
}

func NewAccountUseCase(accountRepo repository.AccountRepository) *AccountUseCase {
	return &AccountUseCase{accountRepo: accountRepo, now: time.Now}
}

func (uc *AccountUseCase) Create(ctx context.Context, userID string, in CreateAccountInput) (*model.Account, error) {
	if userID == "" || in.Name == "" {
		return nil, domain.ErrInvalidArgument
	}
	accType := in.Type
	if accType == "" {
		accType = model.AccountTypeOther
	}
	a := &model.Account{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Institution: in.Institution,
		Type:        accType,
		Currency:    in.Currency,
		CreatedAt:   uc.now(),
	}
	if err := uc.accountRepo.Create(ctx, repository.NoTX, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (uc *AccountUseCase) List(ctx context.Context, userID string) ([]*model.Account, error) {
	return uc.accountRepo.ListByUser(ctx, repository.NoTX, userID)
}
