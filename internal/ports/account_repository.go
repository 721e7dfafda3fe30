package ports

import (
	"context"

	"github.com/bnema/octoflex/internal/domain"
)

type AccountRepository interface {
	GetByNumber(ctx context.Context, number domain.AccountNumber) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	Save(ctx context.Context, account domain.Account) error
	Delete(ctx context.Context, number domain.AccountNumber) error
}
