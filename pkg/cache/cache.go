// Package cache persists compiled bytecode chunks in a sqlite database,
// keyed by the content hash of the program they were built from.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/compiler/hash"
	"github.com/chazu/bfc/pkg/bytecode"
	"github.com/chazu/bfc/pkg/tape"
)

// ErrNotFound indicates no chunk is cached under the key.
var ErrNotFound = errors.New("chunk not found")

var log = commonlog.GetLogger("bfc.cache")

// Key identifies a compiled chunk.
type Key [32]byte

// KeyFor derives the cache key of p compiled under policy. It covers the
// program's operator tree, the policy and the bytecode format version, so
// editing commentary never invalidates an entry.
func KeyFor(p *compiler.Program, policy tape.BoundsPolicy) Key {
	tree := hash.HashProgram(p)
	h := sha256.New()
	h.Write(tree[:])
	h.Write([]byte{byte(policy)})
	h.Write(binary.BigEndian.AppendUint16(nil, bytecode.BytecodeVersion))
	var k Key
	h.Sum(k[:0])
	return k
}

func (k Key) String() string {
	return hash.Hex(k)
}

// Stats counts lookups since the cache was opened.
type Stats struct {
	Hits   int
	Misses int
}

// Cache is a sqlite-backed chunk store. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	stats Stats
}

// DefaultPath returns the per-user cache location.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating cache dir: %w", err)
	}
	return filepath.Join(dir, "bfc", "chunks.db"), nil
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		policy INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened chunk cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()
}

// Get returns the chunk cached under key. A stored entry that no longer
// decodes or verifies is treated as a miss.
func (c *Cache) Get(ctx context.Context, key Key) (*bytecode.Chunk, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM chunks WHERE key = ?", key.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.count(false)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying chunk: %w", err)
	}

	chunk, err := bytecode.UnmarshalChunk(data)
	if err == nil {
		err = chunk.Verify()
	}
	if err != nil {
		log.Warningf("discarding bad cache entry %s: %s", key, err)
		c.count(false)
		return nil, ErrNotFound
	}
	c.count(true)
	return chunk, nil
}

// Put stores chunk under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key Key, chunk *bytecode.Chunk) error {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO chunks (key, version, policy, data, created_at) VALUES (?, ?, ?, ?, ?)",
		key.String(), int(chunk.Version), int(chunk.Policy), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// Purge deletes entries written by other bytecode versions and returns
// how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM chunks WHERE version != ?", int(bytecode.BytecodeVersion))
	if err != nil {
		return 0, fmt.Errorf("purging chunks: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached chunks.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Compile returns the chunk for p under policy, compiling and storing it
// on a miss. A failing store is logged and does not fail the compile.
func (c *Cache) Compile(ctx context.Context, p *compiler.Program, policy tape.BoundsPolicy) (*bytecode.Chunk, error) {
	key := KeyFor(p, policy)
	chunk, err := c.Get(ctx, key)
	if err == nil {
		log.Debugf("cache hit %s", key)
		return chunk, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	chunk, err = bytecode.Compile(p, policy)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, key, chunk); err != nil {
		log.Warningf("caching chunk %s: %s", key, err)
	}
	return chunk, nil
}
