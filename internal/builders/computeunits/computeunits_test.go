package computeunits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

func TestUnitLimit_KnownFamilies(t *testing.T) {
	assert.Equal(t, uint32(400_000), UnitLimit(coredomain.DEXPumpFunBondingCrv))
	assert.Equal(t, uint32(1_400_000), UnitLimit(coredomain.DEXOrcaWhirlpool))
}

func TestUnitLimit_UnknownFamilyFallsBackToDefault(t *testing.T) {
	assert.Equal(t, defaultUnitLimit, UnitLimit(coredomain.DEXUnknown))
}

func TestInstructions_BuildsLimitThenPrice(t *testing.T) {
	ixs := Instructions(coredomain.DEXRaydiumV4, 5_000)
	require.Len(t, ixs, 2)
	for _, ix := range ixs {
		assert.NotNil(t, ix)
	}
	limitData, err := ixs[0].Data()
	require.NoError(t, err)
	assert.Equal(t, byte(2), limitData[0])
	priceData, err := ixs[1].Data()
	require.NoError(t, err)
	assert.Equal(t, byte(3), priceData[0])
}
