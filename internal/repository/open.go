package repository

import (
	"context"
	"fmt"

	"github.com/dionfirmansyah/yonsense/internal/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Registry bundles the stores opened for one registry driver.
type Registry struct {
	Subscriptions SubscriptionStore
	Dispatches    DispatchLog
}

// Open connects the registry selected by cfg.RegistryDriver.
func Open(ctx context.Context, cfg *config.Config) (*Registry, error) {
	switch cfg.RegistryDriver {
	case config.DriverPostgres:
		return openGorm(postgres.Open(cfg.DatabaseURL))
	case config.DriverSQLite:
		return openGorm(sqlite.Open(cfg.DatabaseURL))
	case config.DriverMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		subs, err := NewMongoSubscriptionStore(ctx, client, cfg.MongoDatabase)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("prepare subscriptions collection: %w", err)
		}
		return &Registry{
			Subscriptions: subs,
			Dispatches:    NewMongoDispatchLog(client, cfg.MongoDatabase),
		}, nil
	default:
		return nil, fmt.Errorf("unknown registry driver %q", cfg.RegistryDriver)
	}
}

// openGorm opens a relational registry on an existing dialector.
func openGorm(dialector gorm.Dialector) (*Registry, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	subs, err := NewGormSubscriptionStore(db)
	if err != nil {
		return nil, fmt.Errorf("migrate subscriptions: %w", err)
	}
	dispatches, err := NewGormDispatchLog(db)
	if err != nil {
		return nil, fmt.Errorf("migrate dispatches: %w", err)
	}
	return &Registry{Subscriptions: subs, Dispatches: dispatches}, nil
}
