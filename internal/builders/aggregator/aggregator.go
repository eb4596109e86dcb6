// Package aggregator is the fallback builder for DEX families the
// Classifier could not resolve to a native builder (spec.md §4.6
// "Fallback builder"). It requests a prebuilt, already-signed-by-nobody
// versioned transaction from a single external aggregator endpoint instead
// of encoding a swap instruction itself.
//
// Grounded on internal/dex/raydium/ds_api.go's HTTP client shape
// (context-bound request, single base URL, JSON decode); json decoding
// uses json-iterator for parity with the rest of the pack's indirect
// dependency on it through viper.
package aggregator

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// quoteRequest mirrors spec.md §6's aggregator fallback request body.
type quoteRequest struct {
	InputMint     string `json:"inputMint"`
	OutputMint    string `json:"outputMint"`
	Amount        uint64 `json:"amount"`
	UserPublicKey string `json:"userPublicKey"`
	SlippageBps   uint32 `json:"slippageBps"`
}

type quoteResponse struct {
	SwapTransaction string   `json:"swapTransaction"`
	Transactions    []string `json:"transactions"`
}

// Client requests prebuilt transactions from a single aggregator endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New constructs a Client posting to endpoint with the given request
// timeout (spec.md §5 recommends 5s for HTTP fallback calls).
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{endpoint: endpoint, httpClient: &http.Client{Timeout: timeout}}
}

// Fetch requests one or more prebuilt versioned transactions for plan,
// already base64-decoded, in the order they must be submitted.
func (c *Client) Fetch(ctx context.Context, signer solana.PublicKey, plan coredomain.CopyPlan) ([][]byte, error) {
	class := plan.Classification
	body := quoteRequest{
		InputMint:     class.InputMint.String(),
		OutputMint:    class.OutputMint.String(),
		Amount:        plan.AmountRaw,
		UserPublicKey: signer.String(),
		SlippageBps:   plan.SlippageBps,
	}
	payload, err := jsonAPI.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("aggregator: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("aggregator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aggregator: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("aggregator: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator: endpoint %s returned %s: %s", redactHost(c.endpoint), resp.Status, strconv.Quote(string(raw)))
	}

	var decoded quoteResponse
	if err := jsonAPI.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("aggregator: decode response: %w", err)
	}

	var encoded []string
	if decoded.SwapTransaction != "" {
		encoded = []string{decoded.SwapTransaction}
	} else {
		encoded = decoded.Transactions
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("aggregator: response carried no transaction")
	}

	out := make([][]byte, 0, len(encoded))
	for _, tx := range encoded {
		raw, err := base64.StdEncoding.DecodeString(tx)
		if err != nil {
			return nil, fmt.Errorf("aggregator: decode base64 transaction: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func redactHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "aggregator"
	}
	return u.Host
}
