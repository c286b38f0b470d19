package entity

import (
	"time"
)

// Account is the aggregate root for the identity domain.
// PasswordHash only ever holds a bcrypt digest; Confirmed moves false→true once.
type Account struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	MobileNumber string
	PasswordHash string
	Confirmed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Confirm flips the account to confirmed. It reports false when the account
// was already confirmed.
func (a *Account) Confirm(now time.Time) bool {
	if a.Confirmed {
		return false
	}
	a.Confirmed = true
	a.UpdatedAt = now
	return true
}
