package entity

import "time"

// ConfirmationToken proves control of an account's email address. It is
// exchanged once; a confirmed token cannot be confirmed again.
type ConfirmationToken struct {
	ID        string
	Token     string
	AccountID string
	Confirmed bool
	CreatedAt time.Time
}

func NewConfirmationToken(id, token, accountID string, now time.Time) *ConfirmationToken {
	return &ConfirmationToken{
		ID:        id,
		Token:     token,
		AccountID: accountID,
		CreatedAt: now,
	}
}

// Confirm marks the token used. It reports false when it already was.
func (t *ConfirmationToken) Confirm() bool {
	if t.Confirmed {
		return false
	}
	t.Confirmed = true
	return true
}
