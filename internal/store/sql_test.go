package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reportview/internal/config"
	"reportview/internal/report"
)

func sampleRecord(id string) *report.Record {
	return &report.Record{
		ID:        id,
		Title:     "Báo cáo tuân thủ Q1",
		Type:      report.TypeCompliance,
		Headers:   `{"name":"Họ tên","status":"Trạng thái"}`,
		Data:      `[{"id":"u1","name":"An","status":"Đã đạt"}]`,
		CreatedBy: "admin",
		Token:     "tok-1",
		CreatedAt: time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC),
		ExpiresAt: time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC),
	}
}

func newTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSaveAndGetReport(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	want := sampleRecord("r1")
	if err := s.SaveReport(ctx, want); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	got, err := s.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Title != want.Title || got.Type != want.Type || got.Headers != want.Headers ||
		got.Data != want.Data || got.CreatedBy != want.CreatedBy || got.Token != want.Token {
		t.Errorf("GetReport() = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.ExpiresAt)
	}
}

func TestSQLiteUpsertReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := sampleRecord("r1")
	s.SaveReport(ctx, rec)
	rec.Title = "Đã sửa"
	rec.Token = ""
	if err := s.SaveReport(ctx, rec); err != nil {
		t.Fatalf("second SaveReport() error = %v", err)
	}

	got, _ := s.GetReport(ctx, "r1")
	if got.Title != "Đã sửa" || got.Token != "" {
		t.Errorf("GetReport() after upsert = %+v", got)
	}
}

func TestSQLiteGetMissingReport(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetReport(context.Background(), "nope")
	if !errors.Is(err, report.ErrRecordNotFound) {
		t.Errorf("GetReport() error = %v, want ErrRecordNotFound", err)
	}
}

func TestSQLiteDeleteReport(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	s.SaveReport(ctx, sampleRecord("r1"))
	if err := s.DeleteReport(ctx, "r1"); err != nil {
		t.Fatalf("DeleteReport() error = %v", err)
	}
	if _, err := s.GetReport(ctx, "r1"); !errors.Is(err, report.ErrRecordNotFound) {
		t.Errorf("report still present: %v", err)
	}
	if err := s.DeleteReport(ctx, "r1"); err != nil {
		t.Errorf("deleting a missing report: %v", err)
	}
}

func TestSQLiteAPIKey(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	key, err := s.APIKey(ctx)
	if err != nil || key != "" {
		t.Fatalf("APIKey() on empty table = %q, %v", key, err)
	}

	s.AddAPIKey(ctx, "first")
	s.AddAPIKey(ctx, "second")
	if key, _ := s.APIKey(ctx); key != "first" {
		t.Errorf("APIKey() = %q, want first", key)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s.SaveReport(ctx, sampleRecord("r1"))
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.GetReport(ctx, "r1"); err != nil {
		t.Errorf("GetReport() after reopen error = %v", err)
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(config.MySQLConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "viewer",
		Password: "secret",
		Database: "cme",
	}, 5*time.Second)

	for _, want := range []string{"viewer:secret@tcp(db.internal:3307)/cme?", "parseTime=true", "charset=utf8mb4", "timeout=5s"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestOpen(t *testing.T) {
	logger := testLogger()
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "memory"}, logger)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "r.db")}, logger)
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	s.Close()

	if _, err := Open(ctx, config.StoreConfig{Driver: "cassandra"}, logger); err == nil {
		t.Error("Open() accepted an unknown driver")
	}
	if _, err := Open(ctx, config.StoreConfig{Driver: "firestore"}, logger); err == nil {
		t.Error("Open(firestore) accepted a config without project")
	}
}
