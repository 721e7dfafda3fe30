package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bnema/octoflex/internal/domain"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: userMessage(err)}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		body.Field = validationErr.Field
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, body)
}

func statusFor(err error) int {
	var validationErr *domain.ValidationError
	var authErr *domain.AuthError
	var gqlErr *domain.GraphQLError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCapabilityUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoSnapshot), errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &authErr), errors.Is(err, domain.ErrAuthExpired),
		errors.Is(err, domain.ErrMalformedResponse), errors.As(err, &gqlErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage prefers the summarized upstream error over the wrapped chain.
func userMessage(err error) string {
	var gqlErr *domain.GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.Summary()
	}

	return err.Error()
}
