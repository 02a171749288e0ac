package pathfinder

import (
	"os"
	"sync"
	"time"

	"github.com/fulmenhq/pathfinder/pkg/checksum"
)

// checksumCache memoizes successful checksums keyed by path. An entry is
// only served while the file's size and modification time still match and
// the TTL has not elapsed.
type checksumCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	checksum  string
	algorithm checksum.Algorithm
	size      int64
	modTime   time.Time
	storedAt  time.Time
}

func newChecksumCache(ttl time.Duration) *checksumCache {
	return &checksumCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *checksumCache) get(path string, info os.FileInfo, algorithm checksum.Algorithm) (string, bool) {
	if c == nil || info == nil {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return "", false
	}
	if entry.algorithm != algorithm || entry.size != info.Size() || !entry.modTime.Equal(info.ModTime()) {
		return "", false
	}
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, path)
		return "", false
	}

	return entry.checksum, true
}

func (c *checksumCache) put(path string, info os.FileInfo, algorithm checksum.Algorithm, sum string) {
	if c == nil || info == nil || sum == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = cacheEntry{
		checksum:  sum,
		algorithm: algorithm,
		size:      info.Size(),
		modTime:   info.ModTime(),
		storedAt:  time.Now(),
	}
}
