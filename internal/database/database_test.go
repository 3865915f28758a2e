package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"kairos/internal/metrics"
)

// setupTestDB opens a database in a temporary directory.
func setupTestDB(t *testing.T, opts ...Option) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath, opts...)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func TestDefaultTimeoutConstant(t *testing.T) {
	t.Parallel()

	if defaultTimeout != 5*time.Second {
		t.Errorf("defaultTimeout = %v, want 5 seconds", defaultTimeout)
	}
}

func TestNewCreatesSchema(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	tables, err := db.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}

	if len(tables) != 1 || tables[0] != "metadata" {
		t.Errorf("Tables() = %v, want [metadata]", tables)
	}
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "missing", "test.db")
	if _, err := New(context.Background(), dbPath); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestMemoryDatabase(t *testing.T) {
	t.Parallel()

	db, err := New(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Execute(context.Background(), "CREATE TABLE t (id INTEGER)", 0); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	tables, err := db.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(tables) != 2 {
		t.Errorf("Expected tables to persist across statements, got %v", tables)
	}

	stats := db.GetStats()
	if stats.MainBytes != 0 || stats.WALBytes != 0 {
		t.Errorf("Expected no file sizes for memory database, got %+v", stats)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	db := setupTestDB(t, WithMetrics(registry))

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if got := testutil.ToFloat64(registry.DBQueryTotal.WithLabelValues("ping", "success")); got != 1 {
		t.Errorf("ping success count = %v, want 1", got)
	}
}

func TestIsQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from metadata", true},
		{"(SELECT 1)", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"PRAGMA table_info(metadata)", true},
		{"EXPLAIN QUERY PLAN SELECT 1", true},
		{"VALUES (1), (2)", true},
		{"INSERT INTO t VALUES (1)", false},
		{"update t set a = 1", false},
		{"CREATE TABLE t (id INTEGER)", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			if got := IsQuery(tt.stmt); got != tt.want {
				t.Errorf("IsQuery(%q) = %v, want %v", tt.stmt, got, tt.want)
			}
		})
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	db := setupTestDB(t, WithMetrics(registry))
	ctx := context.Background()

	res, err := db.Execute(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, note TEXT)", 0)
	if err != nil {
		t.Fatalf("CREATE failed: %v", err)
	}
	if res.IsQuery {
		t.Error("CREATE should not be a query")
	}

	res, err = db.Execute(ctx, "INSERT INTO items (name, note) VALUES ('a', NULL), ('b', 'x'), ('c', 'y')", 0)
	if err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	if res.RowsAffected != 3 {
		t.Errorf("RowsAffected = %d, want 3", res.RowsAffected)
	}

	res, err = db.Execute(ctx, "SELECT id, name, note FROM items ORDER BY id", 0)
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}

	if !res.IsQuery {
		t.Error("SELECT should be a query")
	}
	wantColumns := []string{"id", "name", "note"}
	for i, c := range wantColumns {
		if res.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, res.Columns[i], c)
		}
	}
	if len(res.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(res.Rows))
	}
	if res.Rows[0][0] != "1" || res.Rows[0][1] != "a" || res.Rows[0][2] != NullValue {
		t.Errorf("Unexpected first row: %v", res.Rows[0])
	}
	if res.Truncated {
		t.Error("Expected result not to be truncated")
	}

	if got := testutil.ToFloat64(registry.DBQueryTotal.WithLabelValues("exec", "success")); got != 2 {
		t.Errorf("exec success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(registry.DBQueryTotal.WithLabelValues("query", "success")); got != 1 {
		t.Errorf("query success count = %v, want 1", got)
	}
}

func TestExecuteTruncates(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Execute(ctx, "CREATE TABLE n (v INTEGER)", 0); err != nil {
		t.Fatalf("CREATE failed: %v", err)
	}
	if _, err := db.Execute(ctx, "INSERT INTO n VALUES (1), (2), (3), (4), (5)", 0); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}

	tests := []struct {
		maxRows       int
		wantRows      int
		wantTruncated bool
	}{
		{3, 3, true},
		{5, 5, false},
		{10, 5, false},
		{0, 5, false},
	}

	for _, tt := range tests {
		res, err := db.Execute(ctx, "SELECT v FROM n ORDER BY v", tt.maxRows)
		if err != nil {
			t.Fatalf("SELECT failed: %v", err)
		}
		if len(res.Rows) != tt.wantRows {
			t.Errorf("maxRows=%d: got %d rows, want %d", tt.maxRows, len(res.Rows), tt.wantRows)
		}
		if res.Truncated != tt.wantTruncated {
			t.Errorf("maxRows=%d: Truncated = %v, want %v", tt.maxRows, res.Truncated, tt.wantTruncated)
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	db := setupTestDB(t, WithMetrics(registry))
	ctx := context.Background()

	if _, err := db.Execute(ctx, "   ", 0); !errors.Is(err, ErrEmptyStatement) {
		t.Errorf("Expected ErrEmptyStatement, got %v", err)
	}

	if _, err := db.Execute(ctx, "SELECT * FROM missing", 0); err == nil {
		t.Error("Expected error for missing table")
	}

	if _, err := db.Execute(ctx, "DROP TABLE missing", 0); err == nil {
		t.Error("Expected error dropping missing table")
	}

	if got := testutil.ToFloat64(registry.DBQueryTotal.WithLabelValues("query", "error")); got != 1 {
		t.Errorf("query error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(registry.DBQueryTotal.WithLabelValues("exec", "error")); got != 1 {
		t.Errorf("exec error count = %v, want 1", got)
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetMetadata(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}

	if err := db.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if err := db.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}

	value, err := db.GetMetadata(ctx, "k")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if value != "v2" {
		t.Errorf("GetMetadata = %q, want v2", value)
	}
}

func TestRecordStartup(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	startedAt, err := db.GetStartedAt(ctx)
	if err != nil {
		t.Fatalf("GetStartedAt failed: %v", err)
	}
	if !startedAt.IsZero() {
		t.Errorf("Expected zero time before RecordStartup, got %v", startedAt)
	}

	now := time.Now().Truncate(time.Second)
	if err := db.RecordStartup(ctx, now, "1.2.3", "[prod]"); err != nil {
		t.Fatalf("RecordStartup failed: %v", err)
	}

	startedAt, err = db.GetStartedAt(ctx)
	if err != nil {
		t.Fatalf("GetStartedAt failed: %v", err)
	}
	if !startedAt.Equal(now) {
		t.Errorf("GetStartedAt = %v, want %v", startedAt, now)
	}

	version, err := db.GetMetadata(ctx, KeyVersion)
	if err != nil || version != "1.2.3" {
		t.Errorf("version = %q (%v), want 1.2.3", version, err)
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	if err := db.SetMetadata(context.Background(), "k", "v"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}

	stats := db.GetStats()
	if stats.MainBytes+stats.WALBytes == 0 {
		t.Errorf("Expected database files to have a size, got %+v", stats)
	}
	if stats.OpenConnections < 1 {
		t.Errorf("Expected at least one open connection, got %d", stats.OpenConnections)
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, NullValue},
		{[]byte("bytes"), "bytes"},
		{int64(42), "42"},
		{3.5, "3.5"},
		{"text", "text"},
		{ts, "2026-01-02T03:04:05Z"},
	}

	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func BenchmarkExecuteQuery(b *testing.B) {
	db, err := New(context.Background(), MemoryPath)
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := db.Execute(ctx, "SELECT key, value FROM metadata", 100); err != nil {
			b.Fatal(err)
		}
	}
}
