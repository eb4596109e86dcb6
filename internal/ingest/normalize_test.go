package ingest

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeALTResolver struct {
	tables map[solana.PublicKey][]solana.PublicKey
}

func (f *fakeALTResolver) FetchALT(ctx context.Context, key solana.PublicKey) ([]solana.PublicKey, error) {
	addrs, ok := f.tables[key]
	if !ok {
		return nil, assertErrNotFound
	}
	return addrs, nil
}

var assertErrNotFound = errString("lookup table not found")

type errString string

func (e errString) Error() string { return string(e) }

func sampleLeader() solana.PublicKey { return solana.NewWallet().PublicKey() }

func TestNormalize_RejectsOnChainError(t *testing.T) {
	raw := RawUpdate{Err: map[string]any{"InstructionError": []any{0, "Custom"}}}
	event, ok, err := Normalize(context.Background(), &fakeALTResolver{}, sampleLeader(), raw)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, event)
}

func TestNormalize_PrefilterDropsQuietNonSwap(t *testing.T) {
	raw := RawUpdate{
		AccountKeys:  []string{solana.SystemProgramID.String()},
		Signature:    solana.Signature{1}.String(),
		LogMessages:  []string{"Program log: nothing interesting"},
		PreBalances:  []uint64{1_000_000},
		PostBalances: []uint64{1_000_010},
	}
	_, ok, err := Normalize(context.Background(), &fakeALTResolver{}, sampleLeader(), raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalize_PrefilterPassesOnSwapLog(t *testing.T) {
	raw := RawUpdate{
		AccountKeys:  []string{solana.SystemProgramID.String()},
		Signature:    solana.Signature{1}.String(),
		LogMessages:  []string{"Program log: Instruction: Buy"},
		PreBalances:  []uint64{1_000_000},
		PostBalances: []uint64{1_000_010},
	}
	event, ok, err := Normalize(context.Background(), &fakeALTResolver{}, sampleLeader(), raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, event)
}

func TestNormalize_PrefilterPassesOnLargeSOLDelta(t *testing.T) {
	raw := RawUpdate{
		AccountKeys:  []string{solana.SystemProgramID.String()},
		Signature:    solana.Signature{1}.String(),
		LogMessages:  []string{"Program log: nothing interesting"},
		PreBalances:  []uint64{1_000_000},
		PostBalances: []uint64{1_500_000},
	}
	_, ok, err := Normalize(context.Background(), &fakeALTResolver{}, sampleLeader(), raw)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNormalize_ExpandsAddressLookupTable(t *testing.T) {
	tableKey := solana.NewWallet().PublicKey()
	extra := solana.NewWallet().PublicKey()
	resolver := &fakeALTResolver{tables: map[solana.PublicKey][]solana.PublicKey{
		tableKey: {extra},
	}}

	raw := RawUpdate{
		AccountKeys: []string{solana.SystemProgramID.String()},
		AddressTableLookups: []RawALTLookup{
			{AccountKey: tableKey.String(), WritableIndexes: []int{0}},
		},
		Signature:   solana.Signature{1}.String(),
		LogMessages: []string{"Program log: Instruction: Swap"},
		Instructions: []RawInstruction{
			{ProgramIDIndex: 1, Accounts: []int{0}},
		},
	}

	event, ok, err := Normalize(context.Background(), resolver, sampleLeader(), raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, event.AccountKeys, 2)
	assert.Equal(t, extra, event.AccountKeys[1])
	require.Len(t, event.TopLevel, 1)
	assert.Equal(t, extra, event.TopLevel[0].ProgramID)
}

func TestNormalize_RejectsOutOfRangeAccountIndex(t *testing.T) {
	raw := RawUpdate{
		AccountKeys: []string{solana.SystemProgramID.String()},
		Signature:   solana.Signature{1}.String(),
		LogMessages: []string{"Program log: Instruction: Swap"},
		Instructions: []RawInstruction{
			{ProgramIDIndex: 5},
		},
	}
	_, _, err := Normalize(context.Background(), &fakeALTResolver{}, sampleLeader(), raw)
	assert.Error(t, err)
}
