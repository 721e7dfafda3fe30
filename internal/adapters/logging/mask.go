package logging

import (
	"net/http"
	"strings"

	"github.com/bnema/octoflex/internal/domain"
	"go.uber.org/zap"
)

// MaskAuthorization masks the raw Kraken token, preserving a scheme if one is present.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && (strings.EqualFold(parts[0], "Bearer") || strings.EqualFold(parts[0], "JWT")) {
		return parts[0] + " " + domain.MaskSecret(parts[1])
	}

	return domain.MaskSecret(value)
}

// MaskHeaders returns a copy of headers with credentials masked.
func MaskHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "authorization":
			masked[key] = MaskAuthorization(joined)
		case "cookie", "set-cookie":
			masked[key] = "***"
		default:
			masked[key] = joined
		}
	}

	return masked
}

// MaskAccount keeps the prefix and the last two digits of an account number.
func MaskAccount(number domain.AccountNumber) string {
	value := strings.TrimSpace(number.String())
	if len(value) <= 4 {
		return "***"
	}

	return value[:2] + "***" + value[len(value)-2:]
}

func Account(number domain.AccountNumber) zap.Field {
	return zap.String("account", MaskAccount(number))
}

func Email(email string) zap.Field {
	return zap.String("email", domain.MaskEmail(email))
}

func Token(token domain.Token) zap.Field {
	return zap.Stringer("token", token)
}
