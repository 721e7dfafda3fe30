package domain

import "time"

const (
	// TokenValidityWindow bounds how long an issued token is reused before a fresh login.
	TokenValidityWindow = 59 * time.Minute
	tokenExpiryMargin   = time.Minute
)

type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the token can be used for a call made at now.
func (t Token) Valid(now time.Time) bool {
	if t.Value == "" || t.IssuedAt.IsZero() {
		return false
	}
	if !now.Before(t.IssuedAt.Add(TokenValidityWindow)) {
		return false
	}
	if !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt.Add(-tokenExpiryMargin)) {
		return false
	}

	return true
}

func (t Token) Same(other Token) bool {
	return t.Value == other.Value && t.IssuedAt.Equal(other.IssuedAt)
}

func (t Token) String() string {
	return MaskSecret(t.Value)
}

// MaskSecret keeps the first and last five characters of long values.
func MaskSecret(value string) string {
	if len(value) <= 10 {
		return "***"
	}

	return value[:5] + "***" + value[len(value)-5:]
}
