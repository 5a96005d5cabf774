// Package clientdata provides the persistent result cache. Values are stored as
// msgpack blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Repository provides cache operations over the results table.
// It implements domain.ResultCache with a fixed TTL for Put.
type Repository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewRepository creates a new result cache repository. Put stores entries for ttl.
func NewRepository(db *sql.DB, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = TTLDefault
	}
	return &Repository{db: db, ttl: ttl, now: time.Now}
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(key string, data interface{}, ttl time.Duration) error {
	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	now := r.now()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO results (key, data, expires_at, created_at) VALUES (?, ?, ?, ?)",
		key, blob, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store result %s: %w", key, err)
	}
	return nil
}

// Put stores value under key with the repository TTL.
func (r *Repository) Put(key string, value interface{}) error {
	return r.Store(key, value, r.ttl)
}

// Get decodes a fresh entry into dest. It returns false, nil when the key is
// missing or expired.
func (r *Repository) Get(key string, dest interface{}) (bool, error) {
	var blob []byte
	err := r.db.QueryRow(
		"SELECT data FROM results WHERE key = ? AND expires_at > ?",
		key, r.now().Unix(),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get result %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(blob, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal result %s: %w", key, err)
	}
	return true, nil
}

// GetStale decodes an entry regardless of expiration status.
// Use this as a fallback when recomputation fails.
func (r *Repository) GetStale(key string, dest interface{}) (bool, error) {
	var blob []byte
	err := r.db.QueryRow("SELECT data FROM results WHERE key = ?", key).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get result %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(blob, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal result %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM results WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete result %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at <= now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM results WHERE expires_at <= ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired results: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of stored entries, expired or not.
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}
