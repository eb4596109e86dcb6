// Package follower provides the core's Signer capability implementation
// and the CSV-driven registry that maps follower IDs to one, per
// spec.md §9's design note: the core asks a Signer for a signature over a
// message, never for the key itself.
//
// Grounded on the teacher's internal/wallet/wallet.go, whose Wallet type
// holds a base58-decoded solana.PrivateKey directly and exposes
// SignTransaction(tx) signing the whole transaction inline. Inverted here
// into a narrow Signer interface implementation: the private key stays
// encapsulated inside LocalSigner, the one adapter at the process
// boundary that is allowed to hold it, instead of living on Follower or
// CopyPlan the way the teacher's Wallet field sits directly on whatever
// struct needs to sign.
package follower

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// LocalSigner signs with an in-process private key. It is the boundary
// adapter the rest of the core never needs to know is key-backed — any
// other coredomain.Signer implementation (an HSM, a remote signer
// service) is a drop-in replacement.
type LocalSigner struct {
	key solana.PrivateKey
}

var _ coredomain.Signer = LocalSigner{}

// NewLocalSigner decodes a base58 64-byte Solana private key, matching
// the teacher's NewWallet decode-and-validate shape.
func NewLocalSigner(privateKeyBase58 string) (LocalSigner, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return LocalSigner{}, fmt.Errorf("follower: decode private key: %w", err)
	}
	if len(raw) != 64 {
		return LocalSigner{}, fmt.Errorf("follower: invalid private key length: expected 64 bytes, got %d", len(raw))
	}
	return LocalSigner{key: solana.PrivateKey(raw)}, nil
}

// PublicKey implements coredomain.Signer.
func (s LocalSigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

// Sign implements coredomain.Signer.
func (s LocalSigner) Sign(message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}

// LoadSigners reads a CSV of [FollowerID, PrivateKeyBase58] rows, mirroring
// the teacher's LoadWallets shape, and returns a follower-ID-keyed map of
// Signer capabilities ready to hand to coredomain.Follower.
func LoadSigners(path string) (map[string]coredomain.Signer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("follower: open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("follower: read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("follower: %s has no data rows", path)
	}

	signers := make(map[string]coredomain.Signer, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != 2 {
			continue
		}
		id, keyB58 := record[0], record[1]
		signer, err := NewLocalSigner(keyB58)
		if err != nil {
			return nil, fmt.Errorf("follower: row %q: %w", id, err)
		}
		signers[id] = signer
	}
	return signers, nil
}
