package chain

import (
	"context"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Config configures a Client.
type Config struct {
	Endpoints          []string
	CallsPerSecond     int // per-endpoint throttle
	BlockhashCacheTTL  time.Duration
	ConfirmPollInterval time.Duration
}

// Client is the Chain Client: the only component in the core that talks to
// Solana RPC directly. Everything downstream of Ingest reads normalized
// domain types, and everything upstream of Submit goes through the pool
// here rather than dialing its own endpoint.
type Client struct {
	pool        *Pool
	blockhashes *blockhashCache
	alts        *altCache
	pollEvery   time.Duration
	logger      *zap.Logger
}

// New builds a Client from Config, defaulting the blockhash cache TTL and
// confirmation poll interval when unset.
func New(cfg Config, logger *zap.Logger) *Client {
	ttl := cfg.BlockhashCacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	poll := cfg.ConfirmPollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	rps := cfg.CallsPerSecond
	if rps <= 0 {
		rps = 20
	}

	return &Client{
		pool:        NewPool(cfg.Endpoints, rps, logger),
		blockhashes: newBlockhashCache(ttl),
		alts:        newALTCache(),
		pollEvery:   poll,
		logger:      logger.Named("chain.client"),
	}
}

// FetchAccount returns the raw account data at pubkey, or nil if the
// account does not exist.
func (c *Client) FetchAccount(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	var data []byte
	err := c.pool.do(ctx, "GetAccountInfo", func(ctx context.Context, rc *rpc.Client) error {
		res, err := rc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
		if err != nil {
			if err == rpc.ErrNotFound {
				return nil
			}
			return err
		}
		if res == nil || res.Value == nil {
			return nil
		}
		data = res.Value.Data.GetBinary()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SubmitRaw sends an already-signed, serialized transaction and returns its
// signature. It always sets MaxRetries=0 and honors skipPreflight verbatim;
// the caller (Submitter) is the one who decides whether and how to retry,
// per spec.md §4.1's "the client does not itself retry".
func (c *Client) SubmitRaw(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	var sig solana.Signature
	maxRetries := uint(0)
	err := c.pool.do(ctx, "SendTransactionWithOpts", func(ctx context.Context, rc *rpc.Client) error {
		s, err := rc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       skipPreflight,
			PreflightCommitment: rpc.CommitmentConfirmed,
			MaxRetries:          &maxRetries,
		})
		if err != nil {
			return err
		}
		sig = s
		return nil
	})
	return sig, err
}

// ConfirmOutcome is the three-way result Confirm resolves to.
type ConfirmOutcome int

const (
	ConfirmSuccess ConfirmOutcome = iota
	ConfirmOnChainError
	ConfirmTimeout
)

// Confirm polls signature status until it is confirmed or finalized, the transaction's
// blockhash expires at lastValidBlockHeight, or ctx is cancelled.
func (c *Client) Confirm(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) (ConfirmOutcome, error) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ConfirmTimeout, ctx.Err()
		case <-ticker.C:
			var status *rpc.SignatureStatusesResult
			err := c.pool.do(ctx, "GetSignatureStatuses", func(ctx context.Context, rc *rpc.Client) error {
				res, err := rc.GetSignatureStatuses(ctx, false, signature)
				if err != nil {
					return err
				}
				if res != nil && len(res.Value) > 0 {
					status = res.Value[0]
				}
				return nil
			})
			if err != nil {
				c.logger.Debug("confirm: status check failed, retrying", zap.Error(err))
				continue
			}
			if status == nil {
				height, hErr := c.currentBlockHeight(ctx)
				if hErr == nil && height > lastValidBlockHeight {
					return ConfirmTimeout, ErrConfirmTimeout
				}
				continue
			}
			if status.Err != nil {
				return ConfirmOnChainError, nil
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return ConfirmSuccess, nil
			}
		}
	}
}

// RecentPrioritizationFees returns the recent per-compute-unit
// prioritization fees (micro-lamports) observed on transactions touching
// any of the given accounts, most-recent-first. Used by the Submitter to
// estimate a dynamic unit price (spec.md §4.7 step 2).
func (c *Client) RecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]*rpc.GetRecentPrioritizationFeesResult, error) {
	var out []*rpc.GetRecentPrioritizationFeesResult
	err := c.pool.do(ctx, "GetRecentPrioritizationFees", func(ctx context.Context, rc *rpc.Client) error {
		res, err := rc.GetRecentPrioritizationFees(ctx, accounts)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// FetchTokenBalance returns the raw amount held in an SPL token account, or
// zero if the account does not exist (an absent ATA is zero balance, not an
// error, from the Submitter's false-positive check's point of view).
func (c *Client) FetchTokenBalance(ctx context.Context, ata solana.PublicKey) (uint64, error) {
	var amount uint64
	err := c.pool.do(ctx, "GetTokenAccountBalance", func(ctx context.Context, rc *rpc.Client) error {
		res, err := rc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
		if err != nil {
			if err == rpc.ErrNotFound {
				return nil
			}
			return err
		}
		if res == nil || res.Value == nil {
			return nil
		}
		parsed, perr := strconv.ParseUint(res.Value.Amount, 10, 64)
		if perr != nil {
			return perr
		}
		amount = parsed
		return nil
	})
	return amount, err
}

func (c *Client) currentBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.pool.do(ctx, "GetBlockHeight", func(ctx context.Context, rc *rpc.Client) error {
		h, err := rc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}
