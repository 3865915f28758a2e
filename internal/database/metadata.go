package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Metadata keys written at startup.
const (
	KeyStartedAt = "started_at"
	KeyVersion   = "version"
	KeyProfiles  = "profiles"
)

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() {
		if errors.Is(err, sql.ErrNoRows) {
			d.recordQuery("query", start, nil)
			return
		}
		d.recordQuery("query", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { d.recordQuery("exec", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%s', 'now')
	`, key, value)
	return err
}

// RecordStartup stores the startup time, version and profiles so they can
// be inspected from the console.
func (d *Database) RecordStartup(ctx context.Context, startedAt time.Time, version, profiles string) error {
	for _, kv := range [][2]string{
		{KeyStartedAt, startedAt.UTC().Format(time.RFC3339)},
		{KeyVersion, version},
		{KeyProfiles, profiles},
	} {
		if err := d.SetMetadata(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// GetStartedAt returns the recorded startup time, or the zero time if none
// was recorded.
func (d *Database) GetStartedAt(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, KeyStartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
