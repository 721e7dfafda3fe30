package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/bnema/octoflex/internal/application"

// TokenSource is the part of TokenManager the executor depends on.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (domain.Token, error)
	Invalidate(token domain.Token)
}

// AuthenticatedExecutor runs GraphQL operations with the shared account token.
// An expired token triggers one re-login and one retry of the operation.
type AuthenticatedExecutor struct {
	transport ports.Transport
	tokens    TokenSource
	policy    RetryPolicy
	sleep     sleepFunc
	logger    *zap.Logger
	metrics   ports.Metrics
	tracer    trace.Tracer
}

type ExecutorOption func(*AuthenticatedExecutor)

func WithQueryRetryPolicy(policy RetryPolicy) ExecutorOption {
	return func(e *AuthenticatedExecutor) {
		e.policy = policy
	}
}

func WithExecutorLogger(logger *zap.Logger) ExecutorOption {
	return func(e *AuthenticatedExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithExecutorMetrics(metrics ports.Metrics) ExecutorOption {
	return func(e *AuthenticatedExecutor) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

func NewAuthenticatedExecutor(transport ports.Transport, tokens TokenSource, opts ...ExecutorOption) *AuthenticatedExecutor {
	e := &AuthenticatedExecutor{
		transport: transport,
		tokens:    tokens,
		policy:    DefaultQueryRetryPolicy(),
		sleep:     sleepContext,
		logger:    zap.NewNop(),
		metrics:   ports.NopMetrics{},
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

var _ ports.Executor = (*AuthenticatedExecutor)(nil)

func (e *AuthenticatedExecutor) Execute(ctx context.Context, req ports.GraphQLRequest) (*ports.GraphQLResponse, error) {
	ctx, span := e.tracer.Start(ctx, "graphql "+operationLabel(req),
		trace.WithAttributes(
			attribute.String("graphql.operation.name", req.OperationName),
			attribute.Bool("graphql.mutation", req.Mutation),
		),
	)
	defer span.End()

	resp, err := e.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.IncAPIRequest(req.OperationName, outcomeOf(err))
		return resp, err
	}

	e.metrics.IncAPIRequest(req.OperationName, "ok")
	return resp, nil
}

func (e *AuthenticatedExecutor) execute(ctx context.Context, req ports.GraphQLRequest) (*ports.GraphQLResponse, error) {
	op := operationLabel(req)

	token, err := e.tokens.EnsureValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := e.send(ctx, req, token)
	if tokenExpired(resp, err) {
		e.logger.Debug("token rejected, logging in again", zap.String("operation", op))
		e.tokens.Invalidate(token)

		fresh, loginErr := e.tokens.EnsureValidToken(ctx)
		if loginErr != nil {
			return nil, &domain.APIError{Kind: domain.APIErrorAuthExpired, Op: op, Err: loginErr}
		}

		resp, err = e.send(ctx, req, fresh)
		if tokenExpired(resp, err) {
			return nil, &domain.APIError{Kind: domain.APIErrorAuthExpired, Op: op, Err: expiryCause(resp, err)}
		}
	}
	if err != nil {
		return nil, err
	}

	return e.interpret(req, resp)
}

// send performs the call, retrying transient failures for queries only.
func (e *AuthenticatedExecutor) send(ctx context.Context, req ports.GraphQLRequest, token domain.Token) (*ports.GraphQLResponse, error) {
	op := operationLabel(req)
	attempts := e.policy.attempts()
	if req.Mutation {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := e.transport.Do(ctx, req, token.Value)
		if err == nil || !transientFailure(err) || errors.Is(err, domain.ErrTokenRejected) {
			return resp, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		delay := e.policy.Delay(attempt)
		var transient *domain.TransientError
		if errors.As(err, &transient) && transient.RetryAfter > delay {
			delay = transient.RetryAfter
		}
		e.logger.Debug("transient api failure, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, &domain.APIError{Kind: domain.APIErrorUnavailable, Op: op, Err: errors.Join(lastErr, err)}
		}
	}

	return nil, &domain.APIError{Kind: domain.APIErrorUnavailable, Op: op, Err: lastErr}
}

func (e *AuthenticatedExecutor) interpret(req ports.GraphQLRequest, resp *ports.GraphQLResponse) (*ports.GraphQLResponse, error) {
	op := operationLabel(req)
	if resp == nil || (len(resp.Errors) == 0 && !resp.HasData()) {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: op, Err: errors.New("response has neither data nor errors")}
	}
	if len(resp.Errors) == 0 {
		return resp, nil
	}

	gqlErr := &domain.GraphQLError{Op: op, Errors: resp.Errors}
	if req.AllowPartial && resp.HasData() {
		e.logger.Debug("partial graphql response", zap.String("operation", op), zap.String("detail", gqlErr.Detail()))
		return resp, nil
	}

	e.logger.Warn("graphql operation failed",
		zap.String("operation", op),
		zap.String("summary", gqlErr.Summary()),
		zap.String("detail", gqlErr.Detail()),
	)
	return nil, gqlErr
}

func tokenExpired(resp *ports.GraphQLResponse, err error) bool {
	if err != nil {
		return errors.Is(err, domain.ErrTokenRejected)
	}
	if resp == nil {
		return false
	}
	for _, detail := range resp.Errors {
		if domain.IsTokenExpiryCode(detail.Code) {
			return true
		}
	}

	return false
}

func expiryCause(resp *ports.GraphQLResponse, err error) error {
	if err != nil {
		return err
	}

	return &domain.GraphQLError{Errors: resp.Errors}
}

func transientFailure(err error) bool {
	var transient *domain.TransientError
	return errors.As(err, &transient) || errors.Is(err, context.DeadlineExceeded)
}

func operationLabel(req ports.GraphQLRequest) string {
	if req.OperationName != "" {
		return req.OperationName
	}

	return "graphql"
}

func outcomeOf(err error) string {
	var gqlErr *domain.GraphQLError
	switch {
	case errors.Is(err, domain.ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.As(err, &gqlErr):
		return "graphql_error"
	default:
		return "error"
	}
}
