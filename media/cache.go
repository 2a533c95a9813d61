package media

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ProbeCache persists probed durations keyed by absolute path and file
// mtime, so unchanged files skip the ffprobe round trip on reload.
type ProbeCache struct {
	db *sql.DB
}

// OpenProbeCache opens (and if needed creates) the cache database at path.
func OpenProbeCache(path string) (*ProbeCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open probe cache: %w", err)
	}
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS probe_cache (
		path TEXT PRIMARY KEY,
		mtime INTEGER NOT NULL,
		duration REAL NOT NULL
	);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create probe cache table: %w", err)
	}
	return &ProbeCache{db: db}, nil
}

// Get returns the cached duration for path if the stored mtime still
// matches the file's current mtime.
func (c *ProbeCache) Get(path string, mtime time.Time) (float64, bool) {
	var storedMtime int64
	var duration float64
	err := c.db.QueryRow("SELECT mtime, duration FROM probe_cache WHERE path = ?", path).
		Scan(&storedMtime, &duration)
	if err != nil {
		return 0, false
	}
	if storedMtime != mtime.Unix() {
		return 0, false
	}
	return duration, true
}

// Put stores or replaces the cached duration for path.
func (c *ProbeCache) Put(path string, mtime time.Time, duration float64) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO probe_cache (path, mtime, duration)
		VALUES (?, ?, ?)`,
		path, mtime.Unix(), duration)
	return err
}

// Close releases the underlying database handle.
func (c *ProbeCache) Close() error { return c.db.Close() }
