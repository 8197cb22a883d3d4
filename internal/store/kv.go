package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get returns the value stored under key, or nil when the key is absent.
func (db *DB) Get(key string) ([]byte, error) {
	if v, ok := db.cached(key); ok {
		return v, nil
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	if v, ok := db.cached(key); ok {
		return v, nil
	}

	var value string
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	db.remember(key, []byte(value))
	return []byte(value), nil
}

// Put replaces the value stored under key.
func (db *DB) Put(key string, value []byte) error {
	return db.Update(key, func([]byte) ([]byte, error) { return value, nil })
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(key string) error {
	return db.Update(key, func([]byte) ([]byte, error) { return nil, nil })
}

// Update reads the current value of key, passes it to fn and stores the
// result, all inside one transaction. A nil result deletes the key.
func (db *DB) Update(key string, fn func(cur []byte) ([]byte, error)) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur []byte
	var value string
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read %q: %w", key, err)
	default:
		cur = []byte(value)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if next == nil {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	} else {
		if _, err := tx.Exec(`
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(next), time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("write %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %q: %w", key, err)
	}
	db.remember(key, next)
	return nil
}

// Keys returns all stored keys starting with prefix, sorted.
func (db *DB) Keys(prefix string) ([]string, error) {
	rows, err := db.Query(`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (db *DB) cached(key string) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.cache[key]
	return v, ok
}

func (db *DB) remember(key string, value []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if value == nil {
		delete(db.cache, key)
		return
	}
	db.cache[key] = value
}
