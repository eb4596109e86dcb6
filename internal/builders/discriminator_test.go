package builders

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorDiscriminator_MatchesSHA256Prefix(t *testing.T) {
	sum := sha256.Sum256([]byte("global:buy"))
	got := AnchorDiscriminator("buy")
	assert.Equal(t, sum[:8], got[:])
}

func TestAnchorDiscriminator_DiffersByMethod(t *testing.T) {
	assert.NotEqual(t, AnchorDiscriminator("buy"), AnchorDiscriminator("sell"))
}
