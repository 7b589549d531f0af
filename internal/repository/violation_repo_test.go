package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"trailgate/internal/config"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestViolationRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewViolationRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	v := Violation{
		EventID:      "8b1f7c43-7a0e-4f36-9d25-54a3c5b1e001",
		Key:          "login:10.0.0.1",
		Preset:       "auth",
		MaxRequests:  5,
		WindowMS:     60000,
		BlockedUntil: now.Add(5 * time.Minute),
		CreatedAt:    now,
	}
	mock.ExpectExec("INSERT INTO rate_limit_violations").
		WithArgs(v.EventID, v.Key, v.Preset, v.MaxRequests, v.WindowMS, v.BlockedUntil, v.CreatedAt).
		WillReturnResult(sqlmock.NewResult(11, 1))
	id, err := repo.Create(ctx, v)
	if err != nil || id != 11 {
		t.Fatalf("create err=%v id=%d", err, id)
	}

	cols := []string{"id", "event_id", "limit_key", "preset", "max_requests", "window_ms", "blocked_until", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(11, v.EventID, v.Key, v.Preset, 5, 60000, v.BlockedUntil, now).
		AddRow(10, "e2", "login:10.0.0.2", "auth", 5, 60000, v.BlockedUntil, now.Add(-time.Minute))
	recentQuery := "SELECT " + violationColumns + " FROM rate_limit_violations ORDER BY created_at DESC, id DESC LIMIT ?"
	mock.ExpectQuery(regexp.QuoteMeta(recentQuery)).
		WithArgs(20).
		WillReturnRows(rows)
	items, err := repo.ListRecent(ctx, 20)
	if err != nil || len(items) != 2 {
		t.Fatalf("list recent err=%v len=%d", err, len(items))
	}
	if items[0].Key != v.Key || items[0].WindowMS != 60000 || !items[0].BlockedUntil.Equal(v.BlockedUntil) {
		t.Fatalf("unexpected first row: %+v", items[0])
	}

	byKeyQuery := "SELECT " + violationColumns + " FROM rate_limit_violations WHERE limit_key = ?"
	mock.ExpectQuery(regexp.QuoteMeta(byKeyQuery)).
		WithArgs("nobody", 5).
		WillReturnRows(sqlmock.NewRows(cols))
	items, err = repo.ListByKey(ctx, "nobody", 5)
	if err != nil {
		t.Fatalf("list by key err=%v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rate_limit_violations WHERE created_at < ?")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.DeleteBefore(ctx, now)
	if err != nil || n != 3 {
		t.Fatalf("delete before err=%v n=%d", err, n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
}

func TestViolationRepositoryErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewViolationRepository(db)
	boom := errors.New("db down")

	mock.ExpectExec("INSERT INTO rate_limit_violations").WillReturnError(boom)
	if _, err := repo.Create(context.Background(), Violation{}); !errors.Is(err, boom) {
		t.Fatalf("create err=%v", err)
	}

	mock.ExpectQuery("SELECT").WillReturnError(boom)
	if _, err := repo.ListRecent(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("list err=%v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.MySQLConfig{User: "u", Password: "p@ss:word", Host: "db", Port: 3307, DBName: "trailgate"})
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if parsed.User != "u" || parsed.Passwd != "p@ss:word" || parsed.Addr != "db:3307" || parsed.DBName != "trailgate" {
		t.Fatalf("unexpected dsn fields: %+v", parsed)
	}
	if !parsed.ParseTime || !parsed.MultiStatements {
		t.Fatalf("parseTime and multiStatements must be set: %q", dsn)
	}
}
