package builders

import "crypto/sha256"

// AnchorDiscriminator returns the 8-byte SHA-256 prefix of "global:<method>"
// Anchor-style programs (PumpFun, Meteora) use as their instruction-data
// discriminator, per spec.md §4.6 step 4 / §6.
func AnchorDiscriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
