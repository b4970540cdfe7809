// Package sink implements the CSV Sink: an LRU of open append-mode file
// handles keyed by path, with header-written-once-on-create semantics
// and parent-directory creation.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// handle is one open, header-written CSV file.
type handle struct {
	file *os.File
}

func openOrCreate(path, header string) (*handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directories for %s: %w", path, err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if needsHeader {
		if _, err := f.WriteString(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header to %s: %w", path, err)
		}
	}
	return &handle{file: f}, nil
}

func (h *handle) writeRow(row string) error {
	_, err := h.file.WriteString(row)
	return err
}

func (h *handle) close() {
	h.file.Close()
}

// FixedCache is a fixed-capacity LRU of open file handles, used by the
// futex accumulator (capacity 4).
type FixedCache struct {
	cache *lru.Cache[string, *handle]
}

// NewFixedCache returns a FixedCache with the given capacity. Evicted
// handles are closed.
func NewFixedCache(capacity int) (*FixedCache, error) {
	c, err := lru.NewWithEvict[string, *handle](capacity, func(_ string, h *handle) {
		h.close()
	})
	if err != nil {
		return nil, err
	}
	return &FixedCache{cache: c}, nil
}

// WriteRow appends row to the file at path, creating it (with header)
// on first use.
func (c *FixedCache) WriteRow(path, header, row string) error {
	h, ok := c.cache.Get(path)
	if !ok {
		var err error
		h, err = openOrCreate(path, header)
		if err != nil {
			return err
		}
		c.cache.Add(path, h)
	}
	return h.writeRow(row)
}

// Close closes every open handle still in the cache.
func (c *FixedCache) Close() {
	for _, key := range c.cache.Keys() {
		c.cache.Remove(key)
	}
}

// ExpiringCache is a time-expiring LRU of open file handles, used by the
// iowait and ipc accumulators (120s TTL).
type ExpiringCache struct {
	cache *expirable.LRU[string, *handle]
}

// NewExpiringCache returns an ExpiringCache with the given TTL.
func NewExpiringCache(ttl time.Duration) *ExpiringCache {
	c := expirable.NewLRU[string, *handle](0, func(_ string, h *handle) {
		h.close()
	}, ttl)
	return &ExpiringCache{cache: c}
}

// WriteRow appends row to the file at path, creating it (with header)
// on first use.
func (c *ExpiringCache) WriteRow(path, header, row string) error {
	h, ok := c.cache.Get(path)
	if !ok {
		var err error
		h, err = openOrCreate(path, header)
		if err != nil {
			return err
		}
		c.cache.Add(path, h)
	}
	return h.writeRow(row)
}

// Close closes every open handle still in the cache.
func (c *ExpiringCache) Close() {
	for _, key := range c.cache.Keys() {
		c.cache.Remove(key)
	}
}

// RenameEntry renames the file backing oldPath to newPath (used when a
// socket's identity becomes known after it was first keyed by KFile).
// If oldPath has no open handle, this is a no-op return of
// os.ErrNotExist so callers can distinguish "nothing to rename" from a
// real I/O failure.
func (c *ExpiringCache) RenameEntry(oldPath, newPath string) error {
	h, ok := c.cache.Get(oldPath)
	if !ok {
		return os.ErrNotExist
	}
	oldName := h.file.Name()

	// Remove evicts the entry, and the cache's own onEvict closes h.file
	// as a side effect — h can't be reused past this point.
	c.cache.Remove(oldPath)

	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", newPath, err)
	}
	if err := os.Rename(oldName, newPath); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", oldPath, newPath, err)
	}

	f, err := os.OpenFile(newPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopening %s after rename: %w", newPath, err)
	}
	c.cache.Add(newPath, &handle{file: f})
	return nil
}
