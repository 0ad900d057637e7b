package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sugawarayuuta/sonnet"
)

// natsPublisher is the subset of *nats.Conn used for broadcasting.
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// Broadcast is the message sent on each publish.
type Broadcast struct {
	PublishedAt time.Time `json:"published_at"`
	Pairs       []Pair    `json:"pairs"`
}

// NATSBroadcaster announces every published Set on a NATS subject. The file
// artifact stays the source of truth; subscribers use this as a change feed.
type NATSBroadcaster struct {
	conn    natsPublisher
	nc      *nats.Conn
	subject string
	now     func() time.Time
}

// NewNATSBroadcaster connects to url.
func NewNATSBroadcaster(url, subject string) (*NATSBroadcaster, error) {
	nc, err := nats.Connect(url,
		nats.Name("pairs-screener"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBroadcaster{conn: nc, nc: nc, subject: subject, now: time.Now}, nil
}

func (b *NATSBroadcaster) Publish(ctx context.Context, set Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	at := set.PublishedAt
	if at.IsZero() {
		at = b.now()
	}
	pairs := set.Pairs
	if pairs == nil {
		pairs = []Pair{}
	}
	data, err := sonnet.Marshal(Broadcast{PublishedAt: at, Pairs: pairs})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", b.subject, err)
	}
	return nil
}

// Close drains the connection.
func (b *NATSBroadcaster) Close() {
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
