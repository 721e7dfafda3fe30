package kraken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/adapters/logging"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint        = "https://api.oeg-kraken.energy/v1/graphql/"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultRequestsPerHour = 100
	DefaultBurst           = 10

	maxResponseBytes = 4 << 20
)

type ClientConfig struct {
	Endpoint        string
	RequestTimeout  time.Duration
	RequestsPerHour int
	Burst           int
	UserAgent       string
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client posts GraphQL operations to the Kraken endpoint. It owns the request
// timeout and the client side rate limit; retries are left to the caller.
type Client struct {
	endpoint  string
	timeout   time.Duration
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

var _ ports.Transport = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	perHour := cfg.RequestsPerHour
	if perHour <= 0 {
		perHour = DefaultRequestsPerHour
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "octoflex"
	}

	return &Client{
		endpoint:  endpoint,
		timeout:   timeout,
		userAgent: userAgent,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), burst),
		logger:    logging.Nop(cfg.Logger),
	}, nil
}

type requestBody struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type responseEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []responseError `json:"errors"`
}

type responseError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path"`
	Extensions struct {
		ErrorCode        string `json:"errorCode"`
		ErrorType        string `json:"errorType"`
		ErrorDescription string `json:"errorDescription"`
	} `json:"extensions"`
}

func (c *Client) Do(ctx context.Context, req ports.GraphQLRequest, token string) (*ports.GraphQLResponse, error) {
	op := operationName(req)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: wait for rate limit: %w", op, err)
	}

	body, err := json.Marshal(requestBody{Query: req.Query, Variables: req.Variables, OperationName: req.OperationName})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		httpReq.Header.Set("Authorization", token)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return nil, &domain.TransientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("graphql request",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
		zap.Any("headers", logging.MaskHeaders(httpReq.Header)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransientError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, domain.ErrTokenRejected)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, &domain.TransientError{
			Op:         op,
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &domain.APIError{
			Kind: domain.APIErrorMalformedResponse,
			Op:   op,
			Err:  fmt.Errorf("status %d: decode response: %w", resp.StatusCode, err),
		}
	}
	if resp.StatusCode != http.StatusOK && len(envelope.Errors) == 0 {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	result := &ports.GraphQLResponse{Data: envelope.Data, Errors: convertErrors(envelope.Errors)}
	if rateLimited(result) {
		return nil, &domain.TransientError{
			Op:         op,
			StatusCode: http.StatusTooManyRequests,
			Err:        &domain.GraphQLError{Op: op, Errors: result.Errors},
		}
	}

	return result, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.timeout)
}

func convertErrors(raw []responseError) []domain.GraphQLErrorDetail {
	if len(raw) == 0 {
		return nil
	}

	details := make([]domain.GraphQLErrorDetail, 0, len(raw))
	for _, e := range raw {
		path := make([]string, 0, len(e.Path))
		for _, segment := range e.Path {
			switch v := segment.(type) {
			case string:
				path = append(path, v)
			case float64:
				path = append(path, strconv.Itoa(int(v)))
			default:
				path = append(path, fmt.Sprint(v))
			}
		}
		details = append(details, domain.GraphQLErrorDetail{
			Message:     e.Message,
			Path:        path,
			Code:        e.Extensions.ErrorCode,
			Type:        e.Extensions.ErrorType,
			Description: e.Extensions.ErrorDescription,
		})
	}

	return details
}

// rateLimited reports a throttled response that carries no usable data.
func rateLimited(resp *ports.GraphQLResponse) bool {
	if resp.HasData() {
		return false
	}
	for _, detail := range resp.Errors {
		if detail.Code == domain.CodeTooManyRequests {
			return true
		}
	}

	return false
}

func retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}

func operationName(req ports.GraphQLRequest) string {
	if req.OperationName != "" {
		return req.OperationName
	}

	return "graphql"
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse api endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("api endpoint must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("api endpoint host is required")
	}

	return nil
}
