package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"github.com/golang-jwt/jwt/v5"
)

// Authenticator exchanges account credentials for a Kraken token.
type Authenticator struct {
	transport ports.Transport
	clock     ports.Clock
}

var _ ports.Authenticator = (*Authenticator)(nil)

func NewAuthenticator(transport ports.Transport, clock ports.Clock) *Authenticator {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Authenticator{transport: transport, clock: clock}
}

type loginPayload struct {
	ObtainKrakenToken *struct {
		Token   string          `json:"token"`
		Payload json.RawMessage `json:"payload"`
	} `json:"obtainKrakenToken"`
}

func (a *Authenticator) Login(ctx context.Context, creds domain.Credentials) (domain.Token, error) {
	if creds.Empty() {
		return domain.Token{}, &domain.AuthError{Message: "email and password are required"}
	}

	resp, err := a.transport.Do(ctx, ports.GraphQLRequest{
		OperationName: "krakenTokenAuthentication",
		Query:         loginMutation,
		Variables: map[string]any{
			"email":    creds.Email,
			"password": creds.Password,
		},
		Mutation: true,
	}, "")
	if err != nil {
		return domain.Token{}, err
	}

	if len(resp.Errors) > 0 {
		first := resp.Errors[0]
		return domain.Token{}, &domain.AuthError{
			Code:    first.Code,
			Message: (&domain.GraphQLError{Errors: resp.Errors}).Summary(),
		}
	}

	var payload loginPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return domain.Token{}, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: "krakenTokenAuthentication", Err: fmt.Errorf("decode login response: %w", err)}
	}
	if payload.ObtainKrakenToken == nil || strings.TrimSpace(payload.ObtainKrakenToken.Token) == "" {
		return domain.Token{}, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: "krakenTokenAuthentication", Err: errors.New("login response carries no token")}
	}

	issuedAt := a.clock.Now()
	value := payload.ObtainKrakenToken.Token

	return domain.Token{
		Value:     value,
		IssuedAt:  issuedAt,
		ExpiresAt: tokenExpiry(payload.ObtainKrakenToken.Payload, value, issuedAt),
	}, nil
}

// tokenExpiry prefers the exp claim of the response payload, then the one
// inside the token, then the local validity window.
func tokenExpiry(rawPayload json.RawMessage, token string, issuedAt time.Time) time.Time {
	var payload struct {
		Exp *float64 `json:"exp"`
	}
	if len(rawPayload) > 0 && json.Unmarshal(rawPayload, &payload) == nil && payload.Exp != nil && *payload.Exp > 0 {
		return time.Unix(int64(*payload.Exp), 0)
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	return issuedAt.Add(domain.TokenValidityWindow)
}
