package domain

import (
	"fmt"
	"strings"
)

type AccountNumber string

func (n AccountNumber) String() string {
	return string(n)
}

// Account is a locally configured Kraken account. The password lives in the
// secret store under SecretRef.
type Account struct {
	Number    AccountNumber
	Name      string
	Email     string
	SecretRef string
}

type DiscoveredAccount struct {
	Number  AccountNumber
	Ledgers []Ledger
}

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Email) == "" || c.Password == ""
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Email: %s, Password: ***}", MaskEmail(c.Email))
}

func (c Credentials) GoString() string {
	return c.String()
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}

	return local[:1] + "***@" + host
}

type LedgerType string

const (
	LedgerElectricity LedgerType = "ELECTRICITY_LEDGER"
	LedgerGas         LedgerType = "GAS_LEDGER"
	LedgerHeat        LedgerType = "HEAT_LEDGER"
)

type Ledger struct {
	Type         LedgerType
	BalanceCents int64
}

func (l Ledger) BalanceEUR() float64 {
	return float64(l.BalanceCents) / 100
}

func (t LedgerType) Label() string {
	switch t {
	case LedgerElectricity:
		return "electricity"
	case LedgerGas:
		return "gas"
	case LedgerHeat:
		return "heat"
	default:
		return strings.ToLower(strings.TrimSuffix(string(t), "_LEDGER"))
	}
}
