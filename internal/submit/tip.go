package submit

import (
	"crypto/rand"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// tipAccounts is the fixed, published set of Jito block-engine tip
// accounts. The Submitter selects one uniformly at random per submission
// (spec.md §4.7 step 3) rather than always using the same one, spreading
// load across the set the way every Jito-aware sender does.
var tipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// pickTipAccount selects one of the fixed tip accounts uniformly at random.
func pickTipAccount() (solana.PublicKey, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tipAccounts))))
	if err != nil {
		return solana.PublicKey{}, err
	}
	return tipAccounts[n.Int64()], nil
}

// tipInstruction builds a SOL transfer from payer to a randomly-chosen tip
// account for lamports, using the real system-program transfer builder
// instead of hand-encoding instruction data.
func tipInstruction(payer solana.PublicKey, lamports uint64) (solana.Instruction, error) {
	tipAccount, err := pickTipAccount()
	if err != nil {
		return nil, err
	}
	return system.NewTransferInstruction(lamports, payer, tipAccount).Build(), nil
}
