package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHealthyEndpoint is returned when every endpoint in the pool is
	// currently cooling down.
	ErrNoHealthyEndpoint = errors.New("chain: no healthy endpoint available")

	// ErrConfirmTimeout is returned by Confirm when neither a confirmed or
	// finalized status nor an on-chain error arrives before the blockhash's last
	// valid block height is reached.
	ErrConfirmTimeout = errors.New("chain: confirmation timeout")
)

// Error wraps a transient RPC failure with the endpoint it came from, so a
// caller can retry against a different one without re-deriving which
// endpoint just failed. The client itself never retries (spec.md §4.1).
type Error struct {
	Err      error
	Endpoint string
	Method   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("chain: %s at %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(err error, endpoint, method string) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Endpoint: endpoint, Method: method}
}
