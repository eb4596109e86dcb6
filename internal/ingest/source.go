// Package ingest consumes a push stream of leader transaction updates,
// decodes each one directly into the flat RawUpdate shape (an update nested
// inside a further envelope is not unwrapped), expands address lookup tables
// through the Chain Client, and emits normalized LeaderTxEvent values for
// the Classifier.
package ingest

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// RawUpdate is the transport-agnostic shape every Source produces before
// normalization: a raw transaction payload plus the slot/commitment
// metadata the push stream attaches. Fields mirror the common shape of
// Solana "logsSubscribe"/geyser-style updates. Each transport unmarshals an
// update straight into this struct, so fields a provider nests under a
// different envelope are left zero.
type RawUpdate struct {
	Err         any            `json:"err"`
	Slot        uint64         `json:"slot"`
	Signature   string         `json:"signature"`
	AccountKeys []string       `json:"accountKeys"`
	AddressTableLookups []RawALTLookup `json:"addressTableLookups"`
	Instructions []RawInstruction `json:"instructions"`
	InnerInstructions []RawInnerInstructionGroup `json:"innerInstructions"`
	LogMessages []string       `json:"logMessages"`
	PreBalances  []uint64      `json:"preBalances"`
	PostBalances []uint64      `json:"postBalances"`
	PreTokenBalances  []RawTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []RawTokenBalance `json:"postTokenBalances"`
	BlockTime   int64          `json:"blockTime"`
}

// RawALTLookup names one address lookup table this transaction references
// and the indices into its address list the writable/readonly account sets
// use.
type RawALTLookup struct {
	AccountKey      string `json:"accountKey"`
	WritableIndexes []int  `json:"writableIndexes"`
	ReadonlyIndexes []int  `json:"readonlyIndexes"`
}

// RawInstruction is one top-level instruction referencing accounts by
// index into the transaction's fully-expanded account key list.
type RawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // base58; Normalize decodes no other encoding
}

// RawInnerInstructionGroup is the set of instructions a single top-level
// index produced via CPI.
type RawInnerInstructionGroup struct {
	Index        int              `json:"index"`
	Instructions []RawInstruction `json:"instructions"`
}

// RawTokenBalance mirrors one entry of pre/postTokenBalances.
type RawTokenBalance struct {
	AccountIndex int    `json:"accountIndex"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner"`
	Amount       string `json:"amount"`
	Decimals     uint8  `json:"decimals"`
}

// Source is one transport's implementation of the push stream. Subscribe
// blocks until ctx is cancelled, delivering every update for the given
// leader set onto out. A Source reconnects internally on transport
// failure; it never exits early just because one read failed.
type Source interface {
	Subscribe(ctx context.Context, leaders []solana.PublicKey, out chan<- RawUpdate) error
}
