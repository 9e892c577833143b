package runtime

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/tulip/vm"
)

// ErrCacheMiss indicates no usable compiled image is stored for a key.
var ErrCacheMiss = errors.New("script not cached")

var cacheLog = commonlog.GetLogger("tulip.cache")

// ScriptCache stores compiled top-level functions in SQLite, keyed by a
// hash of the unit name and source. Images are CBOR-encoded by the vm
// package.
type ScriptCache struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenScriptCache opens or creates the cache database at dbPath.
func OpenScriptCache(dbPath string) (*ScriptCache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scripts (
		key        TEXT PRIMARY KEY,
		unit       TEXT NOT NULL,
		version    INTEGER NOT NULL,
		image      BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &ScriptCache{db: db, dbPath: dbPath}, nil
}

// CacheKey derives the cache key for a source unit.
func CacheKey(name, source string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the database file path.
func (c *ScriptCache) Path() string {
	return c.dbPath
}

// Load returns the compiled function stored under key. Images written by
// another image version count as misses and are dropped.
func (c *ScriptCache) Load(key string) (*vm.Function, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		version int
		image   []byte
	)
	err := c.db.QueryRow("SELECT version, image FROM scripts WHERE key = ?", key).Scan(&version, &image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("querying script: %w", err)
	}

	if version != vm.ImageVersion {
		c.deleteLocked(key)
		return nil, ErrCacheMiss
	}

	fn, err := vm.DecodeFunction(image)
	if err != nil {
		c.deleteLocked(key)
		if errors.Is(err, vm.ErrImageVersion) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("decoding script %s: %w", key, err)
	}
	return fn, nil
}

// Store saves fn under key, replacing any previous image.
func (c *ScriptCache) Store(key string, fn *vm.Function) error {
	image, err := vm.EncodeFunction(fn)
	if err != nil {
		return fmt.Errorf("encoding script: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO scripts (key, unit, version, image, created_at) VALUES (?, ?, ?, ?, ?)",
		key, fn.Unit, vm.ImageVersion, image, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving script: %w", err)
	}
	return nil
}

// Delete removes the image stored under key.
func (c *ScriptCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(key)
}

func (c *ScriptCache) deleteLocked(key string) error {
	if _, err := c.db.Exec("DELETE FROM scripts WHERE key = ?", key); err != nil {
		cacheLog.Warningf("deleting script %s: %s", key, err)
		return fmt.Errorf("deleting script: %w", err)
	}
	return nil
}

// Count returns the number of cached images.
func (c *ScriptCache) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM scripts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting scripts: %w", err)
	}
	return n, nil
}

// Units lists the unit names with cached images, most recent first.
func (c *ScriptCache) Units() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT unit FROM scripts ORDER BY created_at DESC, unit")
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// Clear removes every cached image.
func (c *ScriptCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM scripts"); err != nil {
		return fmt.Errorf("clearing scripts: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *ScriptCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
