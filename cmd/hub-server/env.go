package main

import (
	"context"
	"fmt"

	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/cache"
	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/datasociety/hub/pkg/hub/config"
	"github.com/datasociety/hub/pkg/hub/database"
	"github.com/datasociety/hub/pkg/hub/logging"
	"github.com/datasociety/hub/pkg/hub/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env is what every subcommand needs after startup.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB

	// cache is a nil interface when Redis is not configured.
	cache  catalog.Cache
	closer func()
}

// setup loads config, connects to the store, migrates and makes sure an admin exists.
func setup(ctx context.Context, withCache bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	auth.Configure(cfg.JWT.Secret, cfg.JWT.TTL)

	if err := database.Connect(cfg.Database, cfg.IsDev()); err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if _, err := auth.EnsureAdmin(ctx, db, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name, logger); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensure admin user exists: %w", err)
	}

	e := &env{cfg: cfg, logger: logger, db: db}
	closers := []func() error{database.Close}

	if withCache && cfg.Redis.URL != "" {
		rc, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		e.cache = rc
		closers = append(closers, rc.Close)
		logger.Info("catalog cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	e.closer = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
		_ = logger.Sync()
	}
	return e, nil
}
