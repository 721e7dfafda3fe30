package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrSecretNotFound        = errors.New("secret not found")
	ErrDeviceNotFound        = errors.New("device not found")
	ErrNoSnapshot            = errors.New("no snapshot available yet")
	ErrCapabilityUnavailable = errors.New("capability not available for device")
	ErrTokenRejected         = errors.New("token rejected")

	ErrUnavailable       = errors.New("api unavailable")
	ErrAuthExpired       = errors.New("authentication expired")
	ErrMalformedResponse = errors.New("malformed api response")
)

// Kraken error codes the client reacts to.
const (
	CodeJWTExpired       = "KT-CT-1124"
	CodeJWTExpiredLegacy = "KT-CT-1139"
	CodeInvalidAuth      = "KT-CT-1143"
	CodeTooManyRequests  = "KT-CT-1199"
	CodeResourceNotFound = "KT-CT-4301"
)

func IsTokenExpiryCode(code string) bool {
	switch code {
	case CodeJWTExpired, CodeJWTExpiredLegacy, CodeInvalidAuth:
		return true
	default:
		return false
	}
}

// TransientError is a failure worth retrying: network errors, timeouts, 429 and 5xx.
type TransientError struct {
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := "authentication failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type APIErrorKind string

const (
	APIErrorUnavailable       APIErrorKind = "unavailable"
	APIErrorAuthExpired       APIErrorKind = "auth_expired"
	APIErrorMalformedResponse APIErrorKind = "malformed_response"
)

type APIError struct {
	Kind APIErrorKind
	Op   string
	Err  error
}

func (e *APIError) Error() string {
	msg := e.sentinel().Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *APIError) sentinel() error {
	switch e.Kind {
	case APIErrorAuthExpired:
		return ErrAuthExpired
	case APIErrorMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrUnavailable
	}
}

type GraphQLErrorDetail struct {
	Message     string   `json:"message"`
	Path        []string `json:"path,omitempty"`
	Code        string   `json:"code,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (d GraphQLErrorDetail) PathRoot() string {
	if len(d.Path) == 0 {
		return ""
	}

	return d.Path[0]
}

// GraphQLError carries every error entry of a response.
type GraphQLError struct {
	Op     string
	Errors []GraphQLErrorDetail
}

func (e *GraphQLError) Error() string {
	if e.Op == "" {
		return "graphql: " + e.Summary()
	}

	return e.Op + ": " + e.Summary()
}

// Summary is the short user facing text.
func (e *GraphQLError) Summary() string {
	seen := map[string]struct{}{}
	messages := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		msg := friendlyMessage(detail)
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return "unknown api error"
	}

	return strings.Join(messages, "; ")
}

// Detail lists every error entry with its code, path and description.
func (e *GraphQLError) Detail() string {
	lines := make([]string, 0, len(e.Errors))
	for i, detail := range e.Errors {
		line := fmt.Sprintf("[%d] %s", i, detail.Message)
		if detail.Code != "" {
			line += " code=" + detail.Code
		}
		if detail.Type != "" {
			line += " type=" + detail.Type
		}
		if len(detail.Path) > 0 {
			line += " path=" + strings.Join(detail.Path, ".")
		}
		if detail.Description != "" {
			line += " description=" + detail.Description
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func (e *GraphQLError) HasCode(code string) bool {
	for _, detail := range e.Errors {
		if detail.Code == code {
			return true
		}
	}

	return false
}

func friendlyMessage(detail GraphQLErrorDetail) string {
	switch detail.Code {
	case CodeTooManyRequests:
		return "too many requests, try again later"
	case CodeResourceNotFound:
		return "resource not found"
	case CodeJWTExpired, CodeJWTExpiredLegacy:
		return "session expired"
	case CodeInvalidAuth:
		return "invalid authorization"
	}
	if strings.TrimSpace(detail.Message) == "" {
		return "unknown api error"
	}

	return detail.Message
}

type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}

	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}
