// Package store provides the report repositories behind the viewer. Every
// backend holds the shared report snapshots and the assistant credential.
package store

import (
	"context"
	"fmt"
	"time"

	"reportview/internal/config"
	"reportview/internal/logging"
	"reportview/internal/report"
)

// Store is a report repository that can also be written by the snapshot
// importer.
type Store interface {
	report.Repository
	report.CredentialProvider

	// SaveReport inserts the record or replaces the one with the same ID.
	SaveReport(ctx context.Context, rec *report.Record) error
	// DeleteReport removes the record. Deleting a missing ID is not an error.
	DeleteReport(ctx context.Context, id string) error
	Close() error
}

// Open creates the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *logging.Logger) (Store, error) {
	logger = logger.WithContext("driver", cfg.Driver)

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = NewSQLiteStore(cfg.SQLitePath)
	case "mysql":
		s, err = NewMySQLStore(ctx, cfg.MySQL, cfg.Timeout())
	case "postgres":
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case "firestore":
		s, err = NewFirestoreStore(ctx, cfg.Firestore, cfg.Timeout())
	case "memory":
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("report store ready")
	return s, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
