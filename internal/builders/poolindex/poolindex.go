// Package poolindex is the shared PoolResolver implementation for
// internal/builders/raydium, meteora, and orca. None of those programs'
// pool accounts (vaults, Serum market legs, Whirlpool tick arrays) are
// derivable purely from a mint pair by PDA the way raydium.DerivePoolID
// derives the AMM ID itself — a real resolver needs either a live
// getProgramAccounts scan or a synced index, neither of which exists
// anywhere in the pack. This package is the pragmatic middle ground: an
// in-memory, mutex-guarded map of known pools keyed by (family, mint,
// mint), seeded at startup from an operator-maintained file and
// refreshable at runtime, grounded on the Dedup Cache's guarded-map-plus-
// blockhash-stamp shape (internal/dedup/cache.go) minus the expiry sweep,
// since a pool's account set does not expire the way a blockhash does.
package poolindex

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
	jsoniter "github.com/json-iterator/go"

	"github.com/solana-copytrader/engine/internal/builders/meteora"
	"github.com/solana-copytrader/engine/internal/builders/orca"
	"github.com/solana-copytrader/engine/internal/builders/raydium"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one known pool's full account set, a superset of every family's
// Pool shape so one seed file can cover all three builders. Index.ForRaydium,
// Index.ForMeteora, and Index.ForOrca each project it down to their own Pool
// struct, leaving unused fields zero.
type Entry struct {
	Family coredomain.DEXFamily
	MintA  solana.PublicKey
	MintB  solana.PublicKey

	Raydium raydium.Pool
	Meteora meteora.Pool
	Orca    orca.Pool
}

type poolKey struct {
	family coredomain.DEXFamily
	mintA  solana.PublicKey
	mintB  solana.PublicKey
}

func newPoolKey(family coredomain.DEXFamily, mintA, mintB solana.PublicKey) poolKey {
	// Pool account sets are symmetric in the mint pair; canonicalize on
	// the lexically smaller mint so Seed and Resolve agree regardless of
	// which mint is "input" for a given swap direction.
	if mintA.String() > mintB.String() {
		mintA, mintB = mintB, mintA
	}
	return poolKey{family: family, mintA: mintA, mintB: mintB}
}

// Index is a mutex-guarded, family-and-mint-pair-keyed pool registry. The
// three builder packages each declare their own PoolResolver interface
// with a same-shaped but distinctly-typed Resolve method (different
// return types, and Meteora's takes an extra family argument), so Go
// can't let one method satisfy all three — Index holds the shared data
// and the three For*() views below each expose the one Resolve method
// their builder expects.
type Index struct {
	mu      sync.RWMutex
	entries map[poolKey]Entry
}

// New returns an empty Index; call Seed (or Update) before resolving.
func New() *Index {
	return &Index{entries: make(map[poolKey]Entry)}
}

// Seed replaces the Index's contents wholesale, used at startup to load an
// operator-maintained pool list (e.g. decoded from a config file of known
// AMM/DLMM/Whirlpool addresses).
func (idx *Index) Seed(entries []Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[poolKey]Entry, len(entries))
	for _, e := range entries {
		idx.entries[newPoolKey(e.Family, e.MintA, e.MintB)] = e
	}
}

// Update adds or replaces a single pool entry, for runtime discovery (e.g.
// the Classifier observing a leader trade against a pool not yet indexed
// and an out-of-band job resolving its accounts).
func (idx *Index) Update(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[newPoolKey(e.Family, e.MintA, e.MintB)] = e
}

func (idx *Index) lookup(family coredomain.DEXFamily, mintA, mintB solana.PublicKey) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[newPoolKey(family, mintA, mintB)]
	return e, ok
}

// LoadSeedFile reads a JSON array of Entry from path and Seeds idx with it,
// the operator-facing counterpart to Seed. Matches the aggregator
// package's choice of json-iterator over encoding/json for parity with the
// rest of the pack's indirect dependency on it through viper.
func LoadSeedFile(idx *Index, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("poolindex: read seed file: %w", err)
	}
	var entries []Entry
	if err := jsonAPI.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("poolindex: decode seed file: %w", err)
	}
	idx.Seed(entries)
	return nil
}

// RaydiumView adapts Index to raydium.PoolResolver. Family is always
// Raydium V4 from this call site, so it is not part of the lookup key's
// caller-facing signature the way it is for Meteora's three sibling
// families.
type RaydiumView struct{ idx *Index }

var _ raydium.PoolResolver = RaydiumView{}

// ForRaydium returns idx's raydium.PoolResolver view.
func (idx *Index) ForRaydium() RaydiumView { return RaydiumView{idx: idx} }

func (v RaydiumView) Resolve(ctx context.Context, mintA, mintB solana.PublicKey) (raydium.Pool, error) {
	e, ok := v.idx.lookup(coredomain.DEXRaydiumV4, mintA, mintB)
	if !ok {
		return raydium.Pool{}, fmt.Errorf("poolindex: no raydium pool indexed for %s/%s", mintA, mintB)
	}
	return e.Raydium, nil
}

// MeteoraView adapts Index to meteora.PoolResolver.
type MeteoraView struct{ idx *Index }

var _ meteora.PoolResolver = MeteoraView{}

// ForMeteora returns idx's meteora.PoolResolver view.
func (idx *Index) ForMeteora() MeteoraView { return MeteoraView{idx: idx} }

func (v MeteoraView) Resolve(ctx context.Context, family coredomain.DEXFamily, mintA, mintB solana.PublicKey) (meteora.Pool, error) {
	e, ok := v.idx.lookup(family, mintA, mintB)
	if !ok {
		return meteora.Pool{}, fmt.Errorf("poolindex: no %s pool indexed for %s/%s", family, mintA, mintB)
	}
	return e.Meteora, nil
}

// OrcaView adapts Index to orca.PoolResolver.
type OrcaView struct{ idx *Index }

var _ orca.PoolResolver = OrcaView{}

// ForOrca returns idx's orca.PoolResolver view.
func (idx *Index) ForOrca() OrcaView { return OrcaView{idx: idx} }

func (v OrcaView) Resolve(ctx context.Context, mintA, mintB solana.PublicKey) (orca.Pool, error) {
	e, ok := v.idx.lookup(coredomain.DEXOrcaWhirlpool, mintA, mintB)
	if !ok {
		return orca.Pool{}, fmt.Errorf("poolindex: no whirlpool indexed for %s/%s", mintA, mintB)
	}
	return e.Orca, nil
}
