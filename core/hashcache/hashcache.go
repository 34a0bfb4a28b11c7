package hashcache

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

const (
	// ArchiveName is the cache archive file inside the cache folder.
	ArchiveName = "hash_cache.zip"
	// EntryName is the JSON document inside the archive.
	EntryName = "hash_cache.json"

	formatVersion = 1
)

// Entry is one cached hash with the file attributes it was computed from.
type Entry struct {
	Hash  string `json:"hash"`
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"`
}

type document struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// backend moves the encoded archive between the cache and its persistent home.
type backend interface {
	load(ctx context.Context) ([]byte, error)
	store(ctx context.Context, data []byte) error
	String() string
}

// Cache maps a path to a previously computed content hash. It is used by one
// scan at a time; the mutex only guards against accidental sharing.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
	enabled bool
	backend backend
	log     *zap.Logger
}

func newCache(b backend, enabled bool, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]Entry),
		enabled: enabled,
		backend: b,
		log:     log,
	}
}

// load fills the cache from the backend. Any failure leaves it empty.
func (c *Cache) load(ctx context.Context) {
	data, err := c.backend.load(ctx)
	if err != nil {
		c.log.Warn("Hash cache unreadable, starting empty", zap.String("cache", c.backend.String()), zap.Error(err))
		return
	}
	if data == nil {
		c.log.Debug("Hash cache not found, starting empty", zap.String("cache", c.backend.String()))
		return
	}

	entries, err := decode(data)
	if err != nil {
		c.log.Warn("Hash cache corrupt, starting empty", zap.String("cache", c.backend.String()), zap.Error(err))
		return
	}
	c.entries = entries
	c.log.Debug("Hash cache loaded", zap.String("cache", c.backend.String()), zap.Int("entries", len(entries)))
}

// Enabled reports whether the cache persists anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get returns the cached hash for path regardless of freshness.
func (c *Cache) Get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e.Hash, ok
}

// Lookup returns the cached hash for path if the file still has the given size
// and modification time.
func (c *Cache) Lookup(path string, size int64, mtime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.Size != size || e.MTime != mtime.Unix() {
		return "", false
	}
	return e.Hash, true
}

// Put records a hash. The sentinel hash is cached too so unreadable files are
// not retried until they change.
func (c *Cache) Put(path, hash string, size int64, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := Entry{Hash: hash, Size: size, MTime: mtime.Unix()}
	if old, ok := c.entries[path]; ok && old == e {
		return
	}
	c.entries[path] = e
	c.dirty = true
}

// PurgeOrphans drops entries whose path is not in valid and returns how many were removed.
func (c *Cache) PurgeOrphans(valid []string) int {
	keep := make(map[string]struct{}, len(valid))
	for _, p := range valid {
		keep[p] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for p := range c.entries {
		if _, ok := keep[p]; !ok {
			delete(c.entries, p)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Save persists the cache if it changed. A disabled cache never saves.
func (c *Cache) Save(ctx context.Context) error {
	c.mu.Lock()
	if !c.enabled || !c.dirty {
		c.mu.Unlock()
		return nil
	}
	data, err := encode(c.entries)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode hash cache: %w", err)
	}

	if err := c.backend.store(ctx, data); err != nil {
		return fmt.Errorf("save hash cache %s: %w", c.backend, err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	c.log.Debug("Hash cache saved", zap.String("cache", c.backend.String()), zap.Int("entries", c.Len()))
	return nil
}

func encode(entries map[string]Entry) ([]byte, error) {
	doc, err := json.Marshal(document{Version: formatVersion, Entries: entries})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: EntryName, Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (map[string]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for _, f := range zr.File {
		if f.Name != EntryName {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, err
		}

		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if doc.Version != formatVersion {
			return nil, fmt.Errorf("unsupported hash cache version %d", doc.Version)
		}
		if doc.Entries == nil {
			doc.Entries = make(map[string]Entry)
		}
		return doc.Entries, nil
	}
	return nil, fmt.Errorf("archive has no %s", EntryName)
}

// Paths returns the cached paths in sorted order.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
