package application

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-identity/internal/domain/apperror"
	"github.com/oksasatya/go-account-identity/pkg/helpers"
)

// TokenVerifier checks a session token. Satisfied by helpers.JWTManager.
type TokenVerifier interface {
	Verify(token string) (*helpers.Claims, error)
}

// AccountLookup is the part of Service the guard needs.
type AccountLookup interface {
	GetCurrentUser(ctx context.Context, username string) (*AccountSummary, error)
}

// Principal identifies the caller of a protected operation.
type Principal struct {
	AccountID string
	Username  string
}

// AccessGuard admits callers holding a valid session token for a confirmed
// account. It reads the account on every call.
type AccessGuard struct {
	Verifier TokenVerifier
	Accounts AccountLookup
	Logger   *logrus.Logger
}

func NewAccessGuard(v TokenVerifier, accounts AccountLookup, logger *logrus.Logger) *AccessGuard {
	return &AccessGuard{Verifier: v, Accounts: accounts, Logger: logger}
}

const bearerPrefix = "Bearer "

// Authorize validates an Authorization header value.
func (g *AccessGuard) Authorize(ctx context.Context, header string) (Principal, error) {
	if strings.TrimSpace(header) == "" {
		g.Logger.Warn("no authorization token, access denied")
		return Principal{}, apperror.New(apperror.KindUnauthenticated, "no authorization token, access denied")
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		g.Logger.Warn("authorization header is not a bearer token")
		return Principal{}, apperror.New(apperror.KindUnauthenticated, "token verification failed, access denied")
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])

	claims, err := g.Verifier.Verify(raw)
	if err != nil {
		g.Logger.WithError(err).Warn("token verification failed")
		return Principal{}, apperror.Wrap(apperror.KindUnauthenticated, err, "token verification failed, access denied")
	}

	account, err := g.Accounts.GetCurrentUser(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			g.Logger.WithField("username", claims.Username).Warn("token references unknown account")
			return Principal{}, apperror.New(apperror.KindUnauthenticated, "token verification failed, access denied")
		}
		return Principal{}, err
	}
	if account.ID != claims.ID {
		g.Logger.WithField("username", claims.Username).Warn("token account id mismatch")
		return Principal{}, apperror.New(apperror.KindUnauthenticated, "token verification failed, access denied")
	}
	if !account.Confirmed {
		return Principal{}, apperror.New(apperror.KindForbidden, "account email is not confirmed")
	}

	g.Logger.WithField("username", claims.Username).Debug("token valid")
	return Principal{AccountID: claims.ID, Username: claims.Username}, nil
}
