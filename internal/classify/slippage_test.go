package classify

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePumpFunSlippage(t *testing.T) {
	data := make([]byte, pumpFunArgsLen)
	binary.LittleEndian.PutUint64(data[16:24], 1_000_000) // max_sol_cost

	bps := decodePumpFunSlippage(data, 900_000)
	require.NotNil(t, bps)
	assert.Equal(t, uint32(1000), *bps) // (1_000_000-900_000)/1_000_000 * 10000
}

func TestDecodePumpFunSlippage_RejectsWrongLength(t *testing.T) {
	assert.Nil(t, decodePumpFunSlippage(make([]byte, 10), 1))
}

func TestDecodePumpFunSlippage_RejectsOverspend(t *testing.T) {
	data := make([]byte, pumpFunArgsLen)
	binary.LittleEndian.PutUint64(data[16:24], 100)
	assert.Nil(t, decodePumpFunSlippage(data, 200))
}

func TestDecodeRaydiumV4Slippage(t *testing.T) {
	data := make([]byte, raydiumV4ArgsLen)
	binary.LittleEndian.PutUint64(data[9:17], 950_000)

	bps := decodeRaydiumV4Slippage(data, 1_000_000)
	require.NotNil(t, bps)
	assert.Equal(t, uint32(500), *bps)
}

func TestDecodeRaydiumV4Slippage_RejectsWrongLength(t *testing.T) {
	assert.Nil(t, decodeRaydiumV4Slippage(make([]byte, 5), 100))
}
