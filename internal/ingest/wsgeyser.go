package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// wsSubscribeRequest is sent once per connection to tell the upstream
// websocket relay which leaders to filter the stream to.
type wsSubscribeRequest struct {
	Method  string   `json:"method"`
	Leaders []string `json:"leaders"`
}

// WSGeyserSource is a push-stream transport over a plain websocket,
// grounded on the teacher's dial/reconnect loop: a read failure tears the
// connection down and redials with backoff rather than exiting.
type WSGeyserSource struct {
	url    string
	logger *zap.Logger
}

// NewWSGeyserSource builds a Source that dials url on Subscribe.
func NewWSGeyserSource(url string, logger *zap.Logger) *WSGeyserSource {
	return &WSGeyserSource{url: url, logger: logger.Named("ingest.ws")}
}

var _ Source = (*WSGeyserSource)(nil)

// Subscribe blocks until ctx is cancelled, redialing on every read error.
func (s *WSGeyserSource) Subscribe(ctx context.Context, leaders []solana.PublicKey, out chan<- RawUpdate) error {
	leaderStrs := make([]string, len(leaders))
	for i, l := range leaders {
		leaderStrs[i] = l.String()
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := s.dial(ctx, leaderStrs)
		if err != nil {
			s.logger.Warn("dial failed, backing off", zap.Error(err))
			if werr := waitBackoff(ctx); werr != nil {
				return werr
			}
			continue
		}

		s.readLoop(ctx, conn, out)
		conn.Close()
	}
}

func (s *WSGeyserSource) dial(ctx context.Context, leaders []string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, _, err := ws.Dial(dialCtx, s.url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}

	req, err := json.Marshal(wsSubscribeRequest{Method: "subscribe", Leaders: leaders})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("marshal subscribe request: %w", err)
	}
	if err := wsutil.WriteClientMessage(conn, ws.OpText, req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}

	return conn, nil
}

// readLoop drains the connection until a read fails or ctx is cancelled.
func (s *WSGeyserSource) readLoop(ctx context.Context, conn net.Conn, out chan<- RawUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			s.logger.Warn("read failed, reconnecting", zap.Error(err))
			return
		}

		var raw RawUpdate
		if err := json.Unmarshal(msg, &raw); err != nil {
			s.logger.Error("malformed update, dropping", zap.Error(err))
			continue
		}

		select {
		case out <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// waitBackoff sleeps the first interval of a fresh exponential-backoff
// policy, returning ctx.Err() if cancelled first. Each call starts a new
// policy, so repeated calls do not lengthen the delay.
func waitBackoff(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	d := b.NextBackOff()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
