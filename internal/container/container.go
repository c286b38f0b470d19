package container

import (
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-identity/config"
	"github.com/oksasatya/go-account-identity/internal/application"
	"github.com/oksasatya/go-account-identity/internal/domain/repository"
	"github.com/oksasatya/go-account-identity/pkg/helpers"
)

// Container holds the components shared across modules. It is built once in
// cmd/main.go and handed to the router.
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Accounts repository.AccountRepository
	Tokens   repository.ConfirmationTokenRepository
	JWT      *helpers.JWTManager
	Hasher   *helpers.PasswordHasher
	Notifier application.Notifier

	Service *application.Service
	Guard   *application.AccessGuard
}

// Storage is the pair of repositories the account core persists through.
type Storage struct {
	Accounts repository.AccountRepository
	Tokens   repository.ConfirmationTokenRepository
}

func New(cfg *config.Config, logger *logrus.Logger, store Storage, notifier application.Notifier) *Container {
	jwtManager := helpers.NewJWTManager(cfg.TokenSecret)
	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)

	svc := application.NewService(application.ServiceDeps{
		Accounts: store.Accounts,
		Tokens:   store.Tokens,
		Hasher:   hasher,
		Signer:   jwtManager,
		Notifier: notifier,
		Link:     cfg.ConfirmationLink,
		Logger:   logger,
	})

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Accounts: store.Accounts,
		Tokens:   store.Tokens,
		JWT:      jwtManager,
		Hasher:   hasher,
		Notifier: notifier,
		Service:  svc,
		Guard:    application.NewAccessGuard(jwtManager, svc, logger),
	}
}
