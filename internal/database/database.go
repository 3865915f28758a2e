package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"kairos/internal/logging"
	"kairos/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Database wraps the application's SQLite database.
type Database struct {
	db       *sql.DB
	dbPath   string
	mu       sync.RWMutex
	registry *metrics.Registry
}

// Option configures a Database.
type Option func(*Database)

// WithMetrics records query counts and durations in registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(d *Database) {
		d.registry = registry
	}
}

// New opens the database at dbPath and creates the schema.
// dbPath is the full path to the database file and its parent directory
// must exist and be writable.
func New(ctx context.Context, dbPath string, opts ...Option) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	connStr := MemoryPath
	if dbPath != MemoryPath {
		if err := diagnoseDatabasePermissions(dbPath); err != nil {
			logging.Warn("Database permission diagnostics: %v", err)
		}
		// busy_timeout helps prevent "database is locked" errors
		connStr = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dbPath == MemoryPath {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)
	}

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Path returns the path the database was opened with.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { d.recordQuery("ping", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.PingContext(ctx)
	return err
}

// Tables lists user tables in name order.
func (d *Database) Tables(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { d.recordQuery("tables", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	err = rows.Err()
	return tables, err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// GetStats reports file sizes and open connections for the metrics
// collector.
func (d *Database) GetStats() metrics.Stats {
	stats := metrics.Stats{OpenConnections: d.db.Stats().OpenConnections}
	if d.dbPath == MemoryPath {
		return stats
	}
	stats.MainBytes = fileSize(d.dbPath)
	stats.WALBytes = fileSize(d.dbPath + "-wal")
	stats.SHMBytes = fileSize(d.dbPath + "-shm")
	return stats
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// recordQuery records database query metrics
func (d *Database) recordQuery(operation string, start time.Time, err error) {
	if d.registry == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	d.registry.DBQueryTotal.WithLabelValues(operation, status).Inc()
	d.registry.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", path, chmodErr)
		} else {
			logging.Info("Fixed %s permissions", path)
		}
	}

	return nil
}
