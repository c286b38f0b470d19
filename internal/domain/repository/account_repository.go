package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/go-account-identity/internal/domain/entity"
)

// Storage conditions the core distinguishes. Implementations must return
// ErrDuplicate when a unique constraint (username, email, token) rejects a
// write, ErrNotFound when a lookup or update matches no row, and ErrConflict
// when a conditional update finds the record already in the target state.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("unique constraint violated")
	ErrConflict  = errors.New("record already in target state")
)

// AccountRepository defines the storage operations the account core needs.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	Save(ctx context.Context, a *entity.Account) error
	// Delete removes the account and, through the storage layer, its tokens.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByUsername(ctx context.Context, username string) (*entity.Account, error)
	// FindByUsernameOrEmail returns the first account whose username or email
	// matches, or ErrNotFound.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.Account, error)
}

// ConfirmationTokenRepository stores email confirmation tokens. Tokens are
// removed together with their account by the storage layer.
type ConfirmationTokenRepository interface {
	Create(ctx context.Context, t *entity.ConfirmationToken) error
	// MarkConfirmed flips confirmed false→true in a single conditional write.
	// It returns ErrConflict when the token was already confirmed.
	MarkConfirmed(ctx context.Context, id string) error
	GetByToken(ctx context.Context, token string) (*entity.ConfirmationToken, error)
}
