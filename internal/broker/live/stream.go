// Package live holds the order-update stream client shape for a live venue
// connection (spec.md §6's order-update stream shape; SPEC_FULL §1 keeps a
// concrete venue REST/WebSocket client out of scope, so this is the
// transport surface only — no credentials, no venue-specific framing).
//
// Grounded on the teacher's internal/clients/tradernet/websocket_client.go:
// an HTTP/1.1-forced dial (nhooyr.io/websocket negotiates HTTP/2 by default,
// which breaks some venues' WebSocket upgrade), a context-scoped read loop,
// and exponential-backoff reconnect.
package live

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/arduino-trader/internal/broker"
)

const (
	dialTimeout = 30 * time.Second

	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute
)

// http1Client forces HTTP/1.1 so the WebSocket upgrade handshake isn't lost
// to an HTTP/2 ALPN negotiation.
func http1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:   &tls.Config{NextProtos: []string{"http/1.1"}},
			ForceAttemptHTTP2: false,
		},
	}
}

// OrderUpdateStream dials a venue's order-update WebSocket and decodes
// messages into broker.StreamMessage, reconnecting with exponential backoff
// on an unexpected close. Only messages whose Stream is "trade_updates"
// carry an Order (spec.md §6); everything else is skipped by the caller.
type OrderUpdateStream struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewOrderUpdateStream returns a stream client ready to Dial.
func NewOrderUpdateStream(url string, log zerolog.Logger) *OrderUpdateStream {
	return &OrderUpdateStream{
		url:        url,
		httpClient: http1Client(),
		log:        log.With().Str("component", "order_update_stream").Logger(),
	}
}

// Dial opens the connection. Subsequent Receive calls read from it until it
// closes or ctx is cancelled.
func (s *OrderUpdateStream) Dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, &websocket.DialOptions{HTTPClient: s.httpClient})
	if err != nil {
		return fmt.Errorf("live: dial order-update stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// Close closes the underlying connection, unblocking any in-flight Receive
// (spec.md §5: "an in-flight network read is abandoned by closing the
// underlying stream, which surfaces as a benign termination").
func (s *OrderUpdateStream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "")
}

// Receive blocks for the next order-update message. It returns a nil
// message (not an error) for any message whose Stream isn't
// "trade_updates", per spec.md §6.
func (s *OrderUpdateStream) Receive(ctx context.Context) (*broker.StreamMessage, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("live: stream not dialed")
	}

	msgType, data, err := conn.Read(ctx)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			return nil, fmt.Errorf("live: stream closed: %w", err)
		}
		return nil, fmt.Errorf("live: read order update: %w", err)
	}
	if msgType != websocket.MessageText {
		return nil, nil
	}

	var msg broker.StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("live: decode order update: %w", err)
	}
	if msg.Stream != "trade_updates" {
		return nil, nil
	}
	return &msg, nil
}

// ReconnectDelay returns the exponential backoff delay for the given
// 1-indexed attempt, capped at maxReconnectDelay.
func ReconnectDelay(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}
