package follower

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSigner_SignsWithItsOwnKey(t *testing.T) {
	wallet := solana.NewWallet()
	signer, err := NewLocalSigner(base58.Encode(wallet.PrivateKey))
	require.NoError(t, err)

	assert.True(t, signer.PublicKey().Equals(wallet.PublicKey()))

	msg := []byte("message to sign")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)
	assert.True(t, sig.Verify(signer.PublicKey(), msg))
}

func TestNewLocalSigner_RejectsWrongLength(t *testing.T) {
	_, err := NewLocalSigner(base58.Encode([]byte("too short")))
	assert.Error(t, err)
}

func TestLoadSigners_ParsesCSVRows(t *testing.T) {
	walletA := solana.NewWallet()
	walletB := solana.NewWallet()

	dir := t.TempDir()
	path := filepath.Join(dir, "signers.csv")
	content := "follower_id,private_key\n" +
		"alice," + base58.Encode(walletA.PrivateKey) + "\n" +
		"bob," + base58.Encode(walletB.PrivateKey) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	signers, err := LoadSigners(path)
	require.NoError(t, err)
	require.Len(t, signers, 2)
	assert.True(t, signers["alice"].PublicKey().Equals(walletA.PublicKey()))
	assert.True(t, signers["bob"].PublicKey().Equals(walletB.PublicKey()))
}
