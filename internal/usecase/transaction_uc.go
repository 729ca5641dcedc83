package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

type CreateTransactionInput struct {
	AccountID string
	Date      time.Time
	Merchant  *string
	Amount    float64
	Currency  *string
	Pending   bool
}

type TransactionUseCase struct {
	txnRepo     repository.TransactionRepository
	accountRepo repository.AccountRepository
	now         func() time.Time
}

func NewTransactionUseCase(txnRepo repository.TransactionRepository, accountRepo repository.AccountRepository) *TransactionUseCase {
	return &TransactionUseCase{txnRepo: txnRepo, accountRepo: accountRepo, now: time.Now}
}

func (uc *TransactionUseCase) Create(ctx context.Context, userID string, in CreateTransactionInput) (*model.Transaction, error) {
	if userID == "" || in.AccountID == "" || in.Date.IsZero() || in.Amount == 0 {
		return nil, domain.ErrInvalidArgument
	}
	// Ownership check; a transaction can only land on the caller's account.
	if _, err := uc.accountRepo.FindByID(ctx, repository.NoTX, userID, in.AccountID); err != nil {
		return nil, err
	}
	t := &model.Transaction{
		ID:        uuid.NewString(),
		AccountID: in.AccountID,
		Date:      model.DateOnly(in.Date),
		Merchant:  in.Merchant,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Pending:   in.Pending,
		CreatedAt: uc.now(),
	}
	if err := uc.txnRepo.Create(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (uc *TransactionUseCase) ListByAccount(ctx context.Context, userID, accountID string, limit int) ([]model.Transaction, error) {
	if _, err := uc.accountRepo.FindByID(ctx, repository.NoTX, userID, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return uc.txnRepo.ListByAccount(ctx, repository.NoTX, accountID, limit)
}
