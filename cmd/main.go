package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-identity/config"
	"github.com/oksasatya/go-account-identity/internal/application"
	"github.com/oksasatya/go-account-identity/internal/container"
	"github.com/oksasatya/go-account-identity/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/go-account-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-identity/internal/router"
	"github.com/oksasatya/go-account-identity/pkg/helpers"
	"github.com/oksasatya/go-account-identity/pkg/mailer"
	mailtpl "github.com/oksasatya/go-account-identity/pkg/mailer/templates"
	"github.com/oksasatya/go-account-identity/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer closeStore()

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	c := container.New(cfg, logger, store, notifier)
	r := router.NewEngine(c)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
		return
	}
	logger.Info("server exited properly")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (container.Storage, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		s := memory.NewStore()
		return container.Storage{Accounts: s.Accounts(), Tokens: s.Tokens()}, func() {}, nil
	case "postgres", "":
		db, err := pginfra.NewDB(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			return container.Storage{}, nil, err
		}
		if err := pginfra.Migrate(db, cfg.MigrationsDir, logger); err != nil {
			_ = db.Close()
			return container.Storage{}, nil, err
		}
		return postgresStorage(db), func() { _ = db.Close() }, nil
	default:
		return container.Storage{}, nil, errors.New("unknown STORAGE_DRIVER " + cfg.StorageDriver)
	}
}

func postgresStorage(db *sql.DB) container.Storage {
	return container.Storage{
		Accounts: pginfra.NewAccountRepository(db),
		Tokens:   pginfra.NewTokenRepository(db),
	}
}

// buildNotifier picks the confirmation delivery. A queue that cannot be
// reached degrades to logging so registration keeps working.
func buildNotifier(cfg *config.Config, logger *logrus.Logger) (application.Notifier, func()) {
	brand := mailtpl.Brand{AppName: cfg.AppName, CompanyName: cfg.CompanyName}
	if !cfg.MailSendEnabled {
		return mailer.NewLogNotifier(logger), func() {}
	}
	switch cfg.MailDelivery {
	case "queue":
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			helpers.LogError(logger, "rabbitmq unavailable, confirmation emails will only be logged", err, nil)
			return mailer.NewLogNotifier(logger), func() {}
		}
		return mailer.NewQueueNotifier(pub, brand), pub.Close
	case "direct":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
			logger.Warn("mailgun not configured, confirmation emails will only be logged")
			return mailer.NewLogNotifier(logger), func() {}
		}
		return mailer.NewDirectNotifier(mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender), brand), func() {}
	default:
		return mailer.NewLogNotifier(logger), func() {}
	}
}
