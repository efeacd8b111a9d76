package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careportal/internal/config"
	"careportal/internal/handlers"
	"careportal/internal/logger"
	"careportal/internal/models"
	"careportal/internal/repositories"
	"careportal/internal/server"
	"careportal/internal/services"
	"careportal/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const connectTimeout = 10 * time.Second

// application is the wired service plus the resources to release on exit.
type application struct {
	app     *fiber.App
	closers []func() error
}

func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp connects every backing store named by cfg and assembles the HTTP
// application.
func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	a := &application{}

	// --- Initialize Repositories ---
	users, err := openUserRepository(ctx, cfg, a, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	sessionRepo, err := openSessionRepository(ctx, cfg, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// --- Initialize RabbitMQ Client ---
	// Optional; without it account events are simply not published.
	var events services.EventPublisher
	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Logger: log})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, mq.Close)
		if err := mq.ConsumeAccountEvents(func(event models.AccountEvent) error {
			log.Info("account event received",
				zap.String("type", event.Type),
				zap.String("account_id", event.AccountID),
				zap.String("role", string(event.Role)),
			)
			return nil
		}); err != nil {
			log.Warn("account event consumer not started", zap.Error(err))
		}
		events = mq
	}

	// --- Initialize Services ---
	availability := services.NewAvailabilityChecker(users)
	auth := services.NewAuthService(
		users,
		services.NewBcryptHasher(cfg.Security.BcryptCost),
		services.NewRegistrationValidator(availability),
		events,
		log,
	)

	// --- Initialize Fiber App ---
	a.app = server.New(server.Deps{
		Users:        users,
		Auth:         auth,
		Sessions:     services.NewSessionService(sessionRepo, cfg.Session.Secret, cfg.Session.TTL),
		Availability: availability,
		Router:       services.NewRoleRouter(),
		Cookie: handlers.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		},
		Logger: log,
	})
	return a, nil
}

func openUserRepository(ctx context.Context, cfg *config.Config, a *application, log *zap.Logger) (repositories.UserRepository, error) {
	switch cfg.Database.Driver {
	case "mongo":
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		a.closers = append(a.closers, func() error {
			return client.Disconnect(context.Background())
		})
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		repo := repositories.NewMongoUserRepository(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	default:
		db, err := openGorm(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		repo := repositories.NewGORMUserRepository(db)
		if err := repo.Migrate(); err != nil {
			return nil, err
		}
		return repo, nil
	}
}

func openGorm(cfg config.DatabaseCfg, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.NewGorm(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func openSessionRepository(ctx context.Context, cfg *config.Config, a *application) (repositories.SessionRepository, error) {
	if cfg.Session.Store != "redis" {
		return repositories.NewMockSessionRepository(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, rdb.Close)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return repositories.NewRedisSessionRepository(rdb), nil
}
