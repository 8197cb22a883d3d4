package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database backing the key/value store. Reads are served
// from an in-process cache kept coherent by the write methods below; writing
// through the embedded *sql.DB directly bypasses it.
type DB struct {
	*sql.DB

	// writeMu serializes writers and cache fills.
	writeMu sync.Mutex
	mu      sync.RWMutex
	cache   map[string][]byte
}

// Open creates a new SQLite connection with WAL mode and immediate
// transactions so read-modify-write sequences cannot interleave.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, cache: make(map[string][]byte)}, nil
}
