package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// altHeaderSize is the fixed size of an address lookup table account's
// metadata header (discriminator, deactivation slot, last-extended slot,
// start index, authority option, padding) before the address list begins.
const altHeaderSize = 56

// altCache never evicts: within the horizon this core cares about, ALTs
// are append-only, so a table's address list at index i never changes
// once observed (spec.md §4.1).
type altCache struct {
	mu    sync.RWMutex
	addrs map[solana.PublicKey][]solana.PublicKey
}

func newALTCache() *altCache {
	return &altCache{addrs: make(map[solana.PublicKey][]solana.PublicKey)}
}

// FetchALT returns the ordered address list of the lookup table at key,
// serving from cache when already resolved once this process.
func (c *Client) FetchALT(ctx context.Context, key solana.PublicKey) ([]solana.PublicKey, error) {
	c.alts.mu.RLock()
	if addrs, ok := c.alts.addrs[key]; ok {
		c.alts.mu.RUnlock()
		return addrs, nil
	}
	c.alts.mu.RUnlock()

	data, err := c.FetchAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("chain: address lookup table %s not found", key)
	}

	addrs, err := decodeALT(data)
	if err != nil {
		return nil, fmt.Errorf("chain: decode lookup table %s: %w", key, err)
	}

	c.alts.mu.Lock()
	c.alts.addrs[key] = addrs
	c.alts.mu.Unlock()
	return addrs, nil
}

func decodeALT(data []byte) ([]solana.PublicKey, error) {
	if len(data) < altHeaderSize {
		return nil, fmt.Errorf("account too small for a lookup table header: %d bytes", len(data))
	}
	body := data[altHeaderSize:]
	if len(body)%32 != 0 {
		return nil, fmt.Errorf("lookup table address list is not a multiple of 32 bytes: %d", len(body))
	}
	out := make([]solana.PublicKey, len(body)/32)
	for i := range out {
		copy(out[i][:], body[i*32:(i+1)*32])
	}
	return out, nil
}
