package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportview/internal/report"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS shared_reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		report_type TEXT NOT NULL DEFAULT '',
		headers TEXT NOT NULL,
		data TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		token TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		expires_at BIGINT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS api_keys (
		id BIGSERIAL PRIMARY KEY,
		key_value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure report schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*report.Record, error) {
	var (
		rec                  report.Record
		typ                  string
		createdAt, expiresAt int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, report_type, headers, data, created_by, token, created_at, expires_at
		FROM shared_reports WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Title, &typ, &rec.Headers, &rec.Data, &rec.CreatedBy, &rec.Token, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, report.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	rec.Type = report.Type(typ)
	rec.CreatedAt = fromMillis(createdAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	return &rec, nil
}

func (s *PostgresStore) APIKey(ctx context.Context) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx, `SELECT key_value FROM api_keys ORDER BY id LIMIT 1`).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query api key: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, rec *report.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shared_reports (id, title, report_type, headers, data, created_by, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			report_type = EXCLUDED.report_type,
			headers = EXCLUDED.headers,
			data = EXCLUDED.data,
			created_by = EXCLUDED.created_by,
			token = EXCLUDED.token,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, rec.ID, rec.Title, string(rec.Type), rec.Headers, rec.Data,
		rec.CreatedBy, rec.Token, toMillis(rec.CreatedAt), toMillis(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteReport(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM shared_reports WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
