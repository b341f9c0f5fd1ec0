package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/feedback"
)

// pooledStore closes the connection pool along with the store.
type pooledStore struct {
	*feedback.PostgresStore
	db *DB
}

func (s *pooledStore) Close() error {
	s.db.Close()
	return nil
}

// OpenFeedbackStore opens the feedback store selected by cfg.Driver. The
// postgres driver applies pending migrations before returning.
func OpenFeedbackStore(ctx context.Context, cfg domain.FeedbackConfig, logger *logrus.Logger) (feedback.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		store, err := feedback.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite feedback store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("Feedback store ready")
		return store, nil

	case "postgres":
		if cfg.MigrationsPath != "" {
			if err := migrateUp(ctx, cfg, logger); err != nil {
				return nil, err
			}
		}

		db, err := NewConnection(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store, err := feedback.NewPostgresStore(db.SQL)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &pooledStore{PostgresStore: store, db: db}, nil

	default:
		return nil, fmt.Errorf("unsupported feedback driver %q", cfg.Driver)
	}
}

func migrateUp(ctx context.Context, cfg domain.FeedbackConfig, logger *logrus.Logger) error {
	runner, err := NewMigrationRunner(cfg.PostgresURL, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()
	return runner.Up(ctx)
}
