package model

import "time"

const (
	AccountTypeSelfRegistered = "self_registered"
	AccountTypeFederated      = "federated"
)

type Account struct {
	ID             string
	Email          string
	PasswordHash   string
	Name           string
	Gender         string
	Mobile         string
	Photo          *string
	AccountType    string
	Provider       *string
	ProviderUserID *string
	Verified       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasCredential reports whether the account can authenticate with a password.
// Accounts created through a federated provider carry no local credential.
func (a Account) HasCredential() bool {
	return a.PasswordHash != ""
}

type OTPChallenge struct {
	ID        string
	AccountID string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ProviderAssertion is the validated identity tuple handed over by an
// external provider after its own protocol exchange.
type ProviderAssertion struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Photo          *string
}
