package wasmforge

import (
	"bytes"
	"fmt"
	"testing"
)

func cachedResult(payload []byte) *CompilationResult {
	return &CompilationResult{
		Success: true,
		Wasm:    payload,
		Stats:   CompilationStats{OutputSize: len(payload)},
	}
}

func TestSourceKeyDependsOnLanguage(t *testing.T) {
	src := "function f() {}"
	if sourceKey(LanguageWAT, src) == sourceKey(LanguageTypeScript, src) {
		t.Fatal("same key for different languages")
	}
	if sourceKey(LanguageWAT, src) != sourceKey(LanguageWAT, src) {
		t.Fatal("key is not deterministic")
	}
	if got := len(sourceKey(LanguageWAT, src)); got != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := newResultCache(1024)
	payload := []byte{1, 2, 3, 4}
	c.put("k", cachedResult(payload))

	got, ok := c.get("k")
	if !ok {
		t.Fatal("miss after put")
	}
	if !bytes.Equal(got.Wasm, payload) {
		t.Fatalf("got % x, want % x", got.Wasm, payload)
	}
	if _, ok := c.get("other"); ok {
		t.Fatal("hit on unknown key")
	}
}

func TestCacheEvictsOldestFirst(t *testing.T) {
	c := newResultCache(30)
	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("k%d", i), cachedResult(make([]byte, 10)))
	}
	if c.len() != 3 {
		t.Fatalf("cache holds %d entries, want 3", c.len())
	}

	// One more 10-byte entry pushes total to 40; only the oldest goes.
	c.put("k3", cachedResult(make([]byte, 10)))
	if c.len() != 3 {
		t.Fatalf("cache holds %d entries after eviction, want 3", c.len())
	}
	if _, ok := c.get("k0"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.get(k); !ok {
			t.Fatalf("entry %s was evicted out of order", k)
		}
	}
}

func TestCacheEvictsMultiple(t *testing.T) {
	c := newResultCache(30)
	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("k%d", i), cachedResult(make([]byte, 10)))
	}
	// 30 + 20 = 50 held bytes: evicting k0 and k1 brings the total to
	// exactly the bound, so k2 must survive.
	c.put("big", cachedResult(make([]byte, 20)))
	if _, ok := c.get("big"); !ok {
		t.Fatal("new entry missing")
	}
	if _, ok := c.get("k0"); ok {
		t.Fatal("k0 should have been evicted")
	}
	if _, ok := c.get("k1"); ok {
		t.Fatal("k1 should have been evicted")
	}
	if _, ok := c.get("k2"); !ok {
		t.Fatal("k2 evicted more than necessary")
	}
}

func TestCacheSkipsOversizedEntries(t *testing.T) {
	c := newResultCache(10)
	c.put("big", cachedResult(make([]byte, 11)))
	if c.len() != 0 {
		t.Fatal("oversized entry was stored")
	}
}

func TestCacheOverwriteSameKey(t *testing.T) {
	c := newResultCache(100)
	c.put("k", cachedResult(make([]byte, 40)))
	c.put("k", cachedResult(make([]byte, 60)))
	if c.len() != 1 {
		t.Fatalf("cache holds %d entries, want 1", c.len())
	}
	got, _ := c.get("k")
	if len(got.Wasm) != 60 {
		t.Fatalf("stale value survived overwrite: %d bytes", len(got.Wasm))
	}
	// Accounting must have replaced, not added, the old size.
	c.put("fill", cachedResult(make([]byte, 40)))
	if c.len() != 2 {
		t.Fatalf("cache holds %d entries, want 2", c.len())
	}
}

func TestCacheDisabled(t *testing.T) {
	c := newResultCache(0)
	c.put("k", cachedResult([]byte{1}))
	if _, ok := c.get("k"); ok {
		t.Fatal("zero-size cache stored an entry")
	}
}
