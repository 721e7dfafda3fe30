package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
)

// Service manages locally configured accounts and their stored passwords.
type Service struct {
	repo  ports.AccountRepository
	store ports.SecretStore
	clock ports.Clock
}

func NewService(repo ports.AccountRepository, store ports.SecretStore, clock ports.Clock) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Service{
		repo:  repo,
		store: store,
		clock: clock,
	}
}

func SecretRefFor(number domain.AccountNumber) string {
	return fmt.Sprintf("octoflex://%s/password", number)
}

func (s *Service) AddAccount(ctx context.Context, cmd AddAccountCommand) error {
	number := domain.AccountNumber(strings.TrimSpace(cmd.Number.String()))
	if number == "" {
		return &domain.ValidationError{Field: "account", Message: "account number is required"}
	}
	if strings.TrimSpace(cmd.Email) == "" {
		return &domain.ValidationError{Field: "email", Message: "email is required"}
	}
	if cmd.Password == "" {
		return &domain.ValidationError{Field: "password", Message: "password is required"}
	}

	account, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("get account by number: %w", err)
		}
		account = domain.Account{Number: number, Name: fmt.Sprintf("Account %s", number)}
	}
	previousSecretRef := account.SecretRef

	secretRef := SecretRefFor(number)
	if err := s.store.Put(ctx, secretRef, cmd.Password); err != nil {
		return fmt.Errorf("store account password: %w", err)
	}

	account.Email = strings.TrimSpace(cmd.Email)
	account.SecretRef = secretRef
	if name := strings.TrimSpace(cmd.Name); name != "" {
		account.Name = name
	}

	if err := s.repo.Save(ctx, account); err != nil {
		if previousSecretRef == secretRef {
			return fmt.Errorf("save account: %w", err)
		}
		if rollbackErr := s.store.Delete(ctx, secretRef); rollbackErr != nil {
			return fmt.Errorf("save account and rollback stored password: %w", errors.Join(err, rollbackErr))
		}

		return fmt.Errorf("save account: %w", err)
	}

	if previousSecretRef != "" && previousSecretRef != secretRef {
		if err := s.store.Delete(ctx, previousSecretRef); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
			return fmt.Errorf("delete previous account password: %w", err)
		}
	}

	return nil
}

func (s *Service) RemoveAccount(ctx context.Context, number domain.AccountNumber) error {
	account, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("get account by number: %w", err)
	}

	if err := s.repo.Delete(ctx, number); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if account.SecretRef == "" {
		return nil
	}

	if err := s.store.Delete(ctx, account.SecretRef); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		if restoreErr := s.repo.Save(ctx, account); restoreErr != nil {
			return fmt.Errorf("delete account password and restore account: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete account password: %w", err)
	}

	return nil
}

func (s *Service) RenameAccount(ctx context.Context, number domain.AccountNumber, name string) error {
	account, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("get account by number: %w", err)
	}

	account.Name = name

	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account name: %w", err)
	}

	return nil
}

func (s *Service) GetAccount(ctx context.Context, number domain.AccountNumber) (domain.Account, error) {
	account, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by number: %w", err)
	}

	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

// Credentials loads the email and stored password of an account.
func (s *Service) Credentials(ctx context.Context, number domain.AccountNumber) (domain.Credentials, error) {
	account, err := s.GetAccount(ctx, number)
	if err != nil {
		return domain.Credentials{}, err
	}
	if account.SecretRef == "" {
		return domain.Credentials{}, fmt.Errorf("account %s has no stored password: %w", number, domain.ErrSecretNotFound)
	}

	password, err := s.store.Get(ctx, account.SecretRef)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("load account password: %w", err)
	}

	return domain.Credentials{Email: account.Email, Password: password}, nil
}
