package ports

import (
	"context"
	"encoding/json"

	"github.com/bnema/octoflex/internal/domain"
)

type GraphQLRequest struct {
	OperationName string
	Query         string
	Variables     map[string]any
	// Mutation requests are never retried on transient failures.
	Mutation bool
	// AllowPartial returns data together with non-fatal errors instead of failing.
	AllowPartial bool
}

type GraphQLResponse struct {
	Data   json.RawMessage
	Errors []domain.GraphQLErrorDetail
}

func (r *GraphQLResponse) HasData() bool {
	if r == nil {
		return false
	}
	trimmed := string(r.Data)
	return trimmed != "" && trimmed != "null" && trimmed != "{}"
}

// Transport performs one GraphQL POST. An empty token sends no Authorization header.
type Transport interface {
	Do(ctx context.Context, req GraphQLRequest, token string) (*GraphQLResponse, error)
}

// Executor runs a request with authentication handled for the caller.
type Executor interface {
	Execute(ctx context.Context, req GraphQLRequest) (*GraphQLResponse, error)
}
