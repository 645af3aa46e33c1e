package wasmforge

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// sourceKey derives the cache key for one compilation: the SHA-256 hex
// digest of the language tag and source text. Identical source compiled
// as a different language must miss.
func sourceKey(lang Language, source string) string {
	h := sha256.New()
	h.Write([]byte(lang))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	result CompilationResult
	seq    uint64
}

// resultCache memoizes successful compilations, bounded by the total
// size of the cached output bytes. When the bound is exceeded the
// oldest entries are evicted first. Writers racing on the same key
// store byte-identical values, so last-writer-wins is fine.
type resultCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	total    int
	maxBytes int
	nextSeq  uint64
}

func newResultCache(maxBytes int) *resultCache {
	return &resultCache{
		entries:  make(map[string]*cacheEntry),
		maxBytes: maxBytes,
	}
}

// get returns a copy of the cached result. The Wasm bytes are cloned so
// a caller mutating the returned slice cannot poison the cache.
func (c *resultCache) get(key string) (*CompilationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	res := e.result
	res.Wasm = bytes.Clone(res.Wasm)
	return &res, true
}

// put stores a result and evicts oldest entries until the size bound
// holds again. Results larger than the whole cache are not stored.
func (c *resultCache) put(key string, res *CompilationResult) {
	size := len(res.Wasm)
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.total -= len(old.result.Wasm)
	}
	c.entries[key] = &cacheEntry{
		result: CompilationResult{
			Success:  res.Success,
			Wasm:     bytes.Clone(res.Wasm),
			Warnings: res.Warnings,
			Stats:    res.Stats,
		},
		seq: c.nextSeq,
	}
	c.nextSeq++
	c.total += size

	for c.total > c.maxBytes {
		c.evictOldestLocked()
	}
}

func (c *resultCache) evictOldestLocked() {
	var oldestKey string
	var oldest *cacheEntry
	for k, e := range c.entries {
		if oldest == nil || e.seq < oldest.seq {
			oldestKey, oldest = k, e
		}
	}
	if oldest == nil {
		return
	}
	delete(c.entries, oldestKey)
	c.total -= len(oldest.result.Wasm)
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
