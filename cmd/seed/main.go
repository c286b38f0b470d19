package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-identity/config"
	"github.com/oksasatya/go-account-identity/internal/application"
	"github.com/oksasatya/go-account-identity/internal/domain/entity"
	"github.com/oksasatya/go-account-identity/internal/domain/repository"
	pginfra "github.com/oksasatya/go-account-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-identity/pkg/helpers"
)

const (
	demoUsername = "demoUser"
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
)

// Seeds a confirmed demo account so protected routes can be tried without
// going through email confirmation.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	db, err := pginfra.NewDB(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		logger.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := pginfra.Migrate(db, cfg.MigrationsDir, logger); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}

	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)
	if err := seed(ctx, pginfra.NewAccountRepository(db), hasher, logger); err != nil {
		logger.Fatalf("failed to seed account: %v", err)
	}
}

func seed(ctx context.Context, accounts repository.AccountRepository, hasher application.PasswordHasher, logger *logrus.Logger) error {
	hash, err := hasher.Hash(demoPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	account := &entity.Account{
		ID:           uuid.NewString(),
		Username:     demoUsername,
		Email:        demoEmail,
		FullName:     "Demo User",
		MobileNumber: "0800000000",
		PasswordHash: hash,
		Confirmed:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.WithField("username", demoUsername).Info("demo account already present")
			return nil
		}
		return err
	}
	logger.WithFields(logrus.Fields{"id": account.ID, "username": demoUsername}).Info("seeded demo account")
	return nil
}
