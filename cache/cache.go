// Package cache stores compiled chunks in SQLite, keyed by source hash, so
// unchanged programs skip the parse, check and compile stages.
package cache

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/ch1n3du/pico-typechecker/vm"
	"github.com/ch1n3du/pico-typechecker/vm/image"
)

var log = commonlog.GetLogger("pico.cache")

// Cache is a persistent chunk cache. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats summarizes cache contents and activity since Open.
type Stats struct {
	Entries int64
	Bytes   int64
	Hits    int64
	Misses  int64
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// PRAGMAs apply per connection; keep one.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		source_hash TEXT PRIMARY KEY,
		image_id TEXT NOT NULL,
		image BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// DefaultPath returns the cache location used when none is configured.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache dir: %w", err)
	}
	return filepath.Join(dir, "pico", "chunks.db"), nil
}

// Path returns the database file backing the cache.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func key(source string) string {
	h := image.HashSource(source)
	return hex.EncodeToString(h[:])
}

// Get returns the chunk compiled from source, if present. Entries that no
// longer decode are evicted and reported as misses.
func (c *Cache) Get(source string) (*vm.Chunk, bool, error) {
	k := key(source)

	var data []byte
	err := c.db.QueryRow("SELECT image FROM chunks WHERE source_hash = ?", k).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying chunk: %w", err)
	}

	chunk, hdr, err := image.Decode(data)
	if err == nil && hdr.SourceHash != image.HashSource(source) {
		err = fmt.Errorf("source hash mismatch")
	}
	if err != nil {
		log.Warningf("evicting stale entry %s: %v", k[:12], err)
		if derr := c.delete(k); derr != nil {
			return nil, false, derr
		}
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	log.Debugf("hit %s (image %s)", k[:12], hdr.ID)
	return chunk, true, nil
}

// Put stores the chunk compiled from source, replacing any previous entry.
func (c *Cache) Put(source string, chunk *vm.Chunk) error {
	data, hdr, err := image.Encode(chunk, source)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (source_hash, image_id, image) VALUES (?, ?, ?)",
		key(source), hdr.ID, data,
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	log.Debugf("stored image %s (%d bytes)", hdr.ID, len(data))
	return nil
}

func (c *Cache) delete(k string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM chunks WHERE source_hash = ?", k); err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Stats reports the number of entries and their total encoded size.
func (c *Cache) Stats() (Stats, error) {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	err := c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(image)), 0) FROM chunks").Scan(&s.Entries, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	return s, nil
}
