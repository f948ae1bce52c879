package store

import (
	"context"
	"database/sql"
	"fmt"
)

// runMigrations creates the schema in a single transaction
func (s *SQLStore) runMigrations(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = createSharedReportsTable(ctx, tx, s.dialect); err != nil {
		return fmt.Errorf("failed to create shared_reports table: %w", err)
	}
	if err = createAPIKeysTable(ctx, tx, s.dialect); err != nil {
		return fmt.Errorf("failed to create api_keys table: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	return nil
}

func createSharedReportsTable(ctx context.Context, tx *sql.Tx, d dialect) error {
	_, err := tx.ExecContext(ctx, d.reportsTable)
	return err
}

func createAPIKeysTable(ctx context.Context, tx *sql.Tx, d dialect) error {
	_, err := tx.ExecContext(ctx, d.keysTable)
	return err
}
