package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-identity/internal/domain/apperror"
	"github.com/oksasatya/go-account-identity/internal/domain/entity"
	repo "github.com/oksasatya/go-account-identity/internal/domain/repository"
	"github.com/oksasatya/go-account-identity/pkg/validation"
)

// PasswordHasher is satisfied by helpers.PasswordHasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenSigner mints session tokens. Satisfied by helpers.JWTManager.
type TokenSigner interface {
	Sign(id, username string) (string, error)
}

// Notifier delivers the confirmation link. Failures never fail registration.
type Notifier interface {
	SendConfirmation(ctx context.Context, to, name, link string) error
}

// LinkBuilder turns a confirmation token into the link mailed to the user.
type LinkBuilder func(token string) string

type RegisterInput struct {
	Username     string `json:"username" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	FullName     string `json:"fullName" validate:"required"`
	MobileNumber string `json:"mobileNumber" validate:"required,mobile"`
	Password     string `json:"password" validate:"required"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountSummary is an account as exposed to callers: never the hash.
// Token is only set by Register and Login.
type AccountSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	MobileNumber string `json:"mobileNumber"`
	Confirmed    bool   `json:"confirmed"`
	Token        string `json:"token,omitempty"`
}

const ConfirmedMessage = "Account confirmed"

type Service struct {
	Accounts repo.AccountRepository
	Tokens   repo.ConfirmationTokenRepository
	Hasher   PasswordHasher
	Signer   TokenSigner
	Notifier Notifier
	Link     LinkBuilder
	Logger   *logrus.Logger

	validate *validator.Validate
	now      func() time.Time
	newToken func() (string, error)

	dummyOnce sync.Once
	dummyHash string
}

type ServiceDeps struct {
	Accounts repo.AccountRepository
	Tokens   repo.ConfirmationTokenRepository
	Hasher   PasswordHasher
	Signer   TokenSigner
	Notifier Notifier
	Link     LinkBuilder
	Logger   *logrus.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		Accounts: deps.Accounts,
		Tokens:   deps.Tokens,
		Hasher:   deps.Hasher,
		Signer:   deps.Signer,
		Notifier: deps.Notifier,
		Link:     deps.Link,
		Logger:   deps.Logger,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newToken: randomToken,
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// dummy returns a digest at the configured cost that no password matches in
// practice. Computed on first use.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		raw, err := s.newToken()
		if err != nil {
			raw = "unused-login-placeholder"
		}
		s.dummyHash, _ = s.Hasher.Hash(raw)
	})
	return s.dummyHash
}

func summarize(a *entity.Account, token string) *AccountSummary {
	return &AccountSummary{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		FullName:     a.FullName,
		MobileNumber: a.MobileNumber,
		Confirmed:    a.Confirmed,
		Token:        token,
	}
}

// Register validates the candidate, enforces username/email uniqueness,
// stores the account with its confirmation token and mails the link.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AccountSummary, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validation(validation.ToDetails(err))
	}

	existing, err := s.Accounts.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil && existing != nil:
		return nil, apperror.ErrDuplicateIdentity
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "check existing account")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "hash password")
	}

	now := s.now()
	account := &entity.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		MobileNumber: in.MobileNumber,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tokenValue, err := s.newToken()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "generate confirmation token")
	}
	confirmation := entity.NewConfirmationToken(uuid.NewString(), tokenValue, account.ID, now)

	// The pre-check above races with concurrent registrations; the unique
	// constraint is what decides the winner.
	if err := s.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.Logger.WithField("username", in.Username).Info("registration lost uniqueness race")
			return nil, apperror.ErrDuplicateIdentity
		}
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "create account")
	}
	s.Logger.WithFields(logrus.Fields{"username": account.Username, "account_id": account.ID}).Info("account registered")

	if err := s.Tokens.Create(ctx, confirmation); err != nil {
		s.rollbackAccount(ctx, account, err)
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "create confirmation token")
	}
	s.Logger.WithField("account_id", account.ID).Info("confirmation token created")

	session, err := s.Signer.Sign(account.ID, account.Username)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "sign session token")
	}

	s.notify(ctx, account, confirmation.Token)

	return summarize(account, session), nil
}

// rollbackAccount removes an account whose confirmation token could not be
// stored; left in place it could never be confirmed and would hold its
// username and email forever.
func (s *Service) rollbackAccount(ctx context.Context, a *entity.Account, cause error) {
	entry := s.Logger.WithError(cause).WithFields(logrus.Fields{
		"account_id":              a.ID,
		"username":                a.Username,
		"registration_incomplete": true,
	})
	if err := s.Accounts.Delete(ctx, a.ID); err != nil {
		entry.WithField("rollback_error", err.Error()).Error("account stored without confirmation token and could not be removed")
		return
	}
	entry.Warn("account removed after confirmation token write failed")
}

func (s *Service) notify(ctx context.Context, a *entity.Account, token string) {
	if s.Notifier == nil || s.Link == nil {
		return
	}
	if err := s.Notifier.SendConfirmation(ctx, a.Email, a.FullName, s.Link(token)); err != nil {
		s.Logger.WithError(err).WithField("account_id", a.ID).Error("confirmation email failed")
		return
	}
	s.Logger.WithField("account_id", a.ID).Info("confirmation email dispatched")
}

// Login checks credentials and issues a fresh session token. Unconfirmed
// accounts may log in; the access guard blocks them from protected routes.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AccountSummary, error) {
	account, err := s.Accounts.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			s.Hasher.Verify(in.Password, s.dummy())
			return nil, apperror.New(apperror.KindNotFound, "user does not exist")
		}
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "load account")
	}

	if !s.Hasher.Verify(in.Password, account.PasswordHash) {
		return nil, apperror.ErrInvalidCredentials
	}

	session, err := s.Signer.Sign(account.ID, account.Username)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "sign session token")
	}
	s.Logger.WithField("username", account.Username).Info("account logged in")

	return summarize(account, session), nil
}

// ConfirmToken exchanges a confirmation token for confirmed status. The
// token write and the account write are separate; if the second fails the
// token stays consumed and the account unconfirmed, which is logged with
// confirmation_incomplete for reconciliation.
func (s *Service) ConfirmToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperror.New(apperror.KindNotFound, "confirmation token does not exist")
	}
	ct, err := s.Tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", apperror.New(apperror.KindNotFound, "confirmation token does not exist")
		}
		return "", apperror.Wrap(apperror.KindUnexpected, err, "load confirmation token")
	}

	if !ct.Confirm() {
		return "", apperror.New(apperror.KindAlreadyConfirmed, "token already confirmed")
	}
	// The read above races with concurrent confirmations; the conditional
	// write decides which caller consumed the token.
	if err := s.Tokens.MarkConfirmed(ctx, ct.ID); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return "", apperror.New(apperror.KindAlreadyConfirmed, "token already confirmed")
		}
		return "", apperror.Wrap(apperror.KindUnexpected, err, "save confirmation token")
	}
	s.Logger.WithField("account_id", ct.AccountID).Info("confirmation token consumed")

	account, err := s.Accounts.GetByID(ctx, ct.AccountID)
	if err != nil {
		s.logIncomplete(ct, err)
		return "", apperror.Wrap(apperror.KindUnexpected, err, "load account for confirmation")
	}
	account.Confirm(s.now())
	if err := s.Accounts.Save(ctx, account); err != nil {
		s.logIncomplete(ct, err)
		return "", apperror.Wrap(apperror.KindUnexpected, err, "save confirmed account")
	}
	s.Logger.WithFields(logrus.Fields{"username": account.Username, "account_id": account.ID}).Info("account confirmed")

	return ConfirmedMessage, nil
}

func (s *Service) logIncomplete(ct *entity.ConfirmationToken, err error) {
	s.Logger.WithError(err).WithFields(logrus.Fields{
		"account_id":              ct.AccountID,
		"token_id":                ct.ID,
		"confirmation_incomplete": true,
	}).Error("token confirmed but account not updated")
}

// GetCurrentUser returns the account for an authenticated username.
func (s *Service) GetCurrentUser(ctx context.Context, username string) (*AccountSummary, error) {
	account, err := s.Accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "user does not exist")
		}
		return nil, apperror.Wrap(apperror.KindUnexpected, err, "load account")
	}
	return summarize(account, ""), nil
}
