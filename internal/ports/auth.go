package ports

import (
	"context"

	"github.com/bnema/octoflex/internal/domain"
)

type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.Token, error)
}

type CredentialSource interface {
	Credentials(ctx context.Context) (domain.Credentials, error)
}
