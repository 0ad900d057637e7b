package market

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"
)

// PublicLinearURL returns the Bybit public linear websocket for env.
// Demo accounts read mainnet market data.
func PublicLinearURL(env string) string {
	host := "stream.bybit.com"
	if env == "testnet" {
		host = "stream-testnet.bybit.com"
	}
	return (&url.URL{Scheme: "wss", Host: host, Path: "/v5/public/linear"}).String()
}

// StreamClient subscribes to Bybit public topics and keeps the connection alive.
type StreamClient struct {
	URL          string
	PingInterval time.Duration
	MaxBackoff   time.Duration
	dialer       *websocket.Dialer
}

// NewStreamClient builds a client for the given websocket URL.
func NewStreamClient(wsURL string) *StreamClient {
	return &StreamClient{
		URL:          wsURL,
		PingInterval: 20 * time.Second,
		MaxBackoff:   30 * time.Second,
		dialer:       websocket.DefaultDialer,
	}
}

type wsOp struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// Run subscribes to topics and passes every data frame to handle until ctx is
// done, reconnecting with exponential backoff when the connection drops.
func (c *StreamClient) Run(ctx context.Context, topics []string, handle func(msg []byte)) {
	backoff := time.Second
	for {
		start := time.Now()
		err := c.session(ctx, topics, handle)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		log.Printf("⚠️ bybit ws disconnected: %v (reconnect in %s)", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.MaxBackoff {
			backoff = c.MaxBackoff
		}
	}
}

func (c *StreamClient) session(ctx context.Context, topics []string, handle func(msg []byte)) error {
	conn, _, err := c.dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial bybit ws: %w", err)
	}
	defer conn.Close()

	sub, err := sonnet.Marshal(wsOp{Op: "subscribe", Args: topics})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("📡 bybit ws subscribed: %d topics", len(topics))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ping, _ := sonnet.Marshal(wsOp{Op: "ping"})
		t := time.NewTicker(c.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblock ReadMessage.
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
				return
			case <-t.C:
				if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if isControlFrame(msg) {
			continue
		}
		handle(msg)
	}
}

// isControlFrame reports op acknowledgements (subscribe, pong) which carry no topic data.
func isControlFrame(msg []byte) bool {
	var probe struct {
		Op    string `json:"op"`
		Topic string `json:"topic"`
	}
	if err := sonnet.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return probe.Topic == "" && probe.Op != ""
}
