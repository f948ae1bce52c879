package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"reportview/internal/config"
	"reportview/internal/report"
)

// dialect holds the statements that differ between the database/sql backends.
type dialect struct {
	driver       string
	reportsTable string
	keysTable    string
	upsertReport string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	reportsTable: `
		CREATE TABLE IF NOT EXISTS shared_reports (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			report_type TEXT NOT NULL DEFAULT '',
			headers TEXT NOT NULL,
			data TEXT NOT NULL,
			created_by TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL
		)
	`,
	keysTable: `
		CREATE TABLE IF NOT EXISTS api_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_value TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`,
	upsertReport: `
		INSERT INTO shared_reports (id, title, report_type, headers, data, created_by, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			report_type = excluded.report_type,
			headers = excluded.headers,
			data = excluded.data,
			created_by = excluded.created_by,
			token = excluded.token,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`,
}

var mysqlDialect = dialect{
	driver: "mysql",
	reportsTable: `
		CREATE TABLE IF NOT EXISTS shared_reports (
			id VARCHAR(191) NOT NULL PRIMARY KEY,
			title VARCHAR(512) NOT NULL DEFAULT '',
			report_type VARCHAR(64) NOT NULL DEFAULT '',
			headers MEDIUMTEXT NOT NULL,
			data LONGTEXT NOT NULL,
			created_by VARCHAR(255) NOT NULL DEFAULT '',
			token VARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL DEFAULT 0,
			expires_at BIGINT NOT NULL
		) DEFAULT CHARSET=utf8mb4
	`,
	keysTable: `
		CREATE TABLE IF NOT EXISTS api_keys (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			key_value VARCHAR(512) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) DEFAULT CHARSET=utf8mb4
	`,
	upsertReport: `
		INSERT INTO shared_reports (id, title, report_type, headers, data, created_by, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title),
			report_type = VALUES(report_type),
			headers = VALUES(headers),
			data = VALUES(data),
			created_by = VALUES(created_by),
			token = VALUES(token),
			created_at = VALUES(created_at),
			expires_at = VALUES(expires_at)
	`,
}

// SQLStore is a Store on database/sql, used for SQLite and MySQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	// WAL lets the importer write while views read
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(context.Background(), db, sqliteDialect)
}

// NewMySQLStore connects to the MySQL database described by cfg.
func NewMySQLStore(ctx context.Context, cfg config.MySQLConfig, timeout time.Duration) (*SQLStore, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg, timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return newSQLStore(ctx, db, mysqlDialect)
}

func mysqlDSN(cfg config.MySQLConfig, timeout time.Duration) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = timeout
	mc.ReadTimeout = timeout
	mc.WriteTimeout = timeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// GetReport returns report.ErrRecordNotFound when no row has id.
func (s *SQLStore) GetReport(ctx context.Context, id string) (*report.Record, error) {
	var (
		rec                  report.Record
		typ                  string
		createdAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, report_type, headers, data, created_by, token, created_at, expires_at
		FROM shared_reports WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Title, &typ, &rec.Headers, &rec.Data, &rec.CreatedBy, &rec.Token, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, report.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	rec.Type = report.Type(typ)
	rec.CreatedAt = fromMillis(createdAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	return &rec, nil
}

// APIKey returns the oldest stored key, or "" when there is none.
func (s *SQLStore) APIKey(ctx context.Context) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT key_value FROM api_keys ORDER BY id LIMIT 1`).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query api key: %w", err)
	}
	return key, nil
}

// AddAPIKey stores an assistant key. APIKey keeps returning the first one added.
func (s *SQLStore) AddAPIKey(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO api_keys (key_value) VALUES (?)`, key); err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveReport(ctx context.Context, rec *report.Record) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertReport,
		rec.ID, rec.Title, string(rec.Type), rec.Headers, rec.Data,
		rec.CreatedBy, rec.Token, toMillis(rec.CreatedAt), toMillis(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteReport(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shared_reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
