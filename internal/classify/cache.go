package classify

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// cacheTTL is the 30-second window spec.md §4.3 specifies.
const cacheTTL = 30 * time.Second

type cacheEntry struct {
	classification *coredomain.Classification
	rejection      error
	expiresAt      time.Time
}

// Cache is the Classifier's signature-keyed verdict cache. It only elides
// computation, never a side effect: a cache hit still returns the full
// verdict for the caller to act on independently.
type Cache struct {
	mu      sync.Mutex
	entries map[solana.Signature]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[solana.Signature]cacheEntry)}
}

// Get returns the cached verdict for sig if present and not expired.
func (c *Cache) Get(sig solana.Signature) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sig]
	if !ok || time.Now().After(e.expiresAt) {
		return cacheEntry{}, false
	}
	return e, true
}

// Put stores a verdict (classification or rejection) keyed by signature.
func (c *Cache) Put(sig solana.Signature, classification *coredomain.Classification, rejection error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sig] = cacheEntry{
		classification: classification,
		rejection:      rejection,
		expiresAt:      time.Now().Add(cacheTTL),
	}
}

// Sweep removes expired entries; callers run this periodically off the hot
// path rather than letting the map grow unbounded.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for sig, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, sig)
		}
	}
}
