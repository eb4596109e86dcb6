package chain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeALT_ParsesAddressList(t *testing.T) {
	header := make([]byte, altHeaderSize)
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	data := append(header, a[:]...)
	data = append(data, b[:]...)

	addrs, err := decodeALT(data)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, a, addrs[0])
	assert.Equal(t, b, addrs[1])
}

func TestDecodeALT_RejectsShortAccount(t *testing.T) {
	_, err := decodeALT(make([]byte, altHeaderSize-1))
	assert.Error(t, err)
}

func TestDecodeALT_RejectsMisalignedBody(t *testing.T) {
	data := make([]byte, altHeaderSize+10)
	_, err := decodeALT(data)
	assert.Error(t, err)
}

func TestDecodeALT_EmptyAddressListIsValid(t *testing.T) {
	addrs, err := decodeALT(make([]byte, altHeaderSize))
	require.NoError(t, err)
	assert.Empty(t, addrs)
}
