package application

import (
	"context"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
)

type AddAccountCommand struct {
	Number   domain.AccountNumber
	Name     string
	Email    string
	Password string
}

// StoredCredentials reads credentials of one account from the account store.
type StoredCredentials struct {
	service *Service
	number  domain.AccountNumber
}

func NewStoredCredentials(service *Service, number domain.AccountNumber) StoredCredentials {
	return StoredCredentials{service: service, number: number}
}

func (c StoredCredentials) Credentials(ctx context.Context) (domain.Credentials, error) {
	return c.service.Credentials(ctx, c.number)
}

// StaticCredentials serves credentials held in memory, e.g. read from the environment.
type StaticCredentials struct {
	creds domain.Credentials
}

func NewStaticCredentials(creds domain.Credentials) StaticCredentials {
	return StaticCredentials{creds: creds}
}

func (c StaticCredentials) Credentials(context.Context) (domain.Credentials, error) {
	return c.creds, nil
}

var (
	_ ports.CredentialSource = StoredCredentials{}
	_ ports.CredentialSource = StaticCredentials{}
)
