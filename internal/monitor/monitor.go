package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"pairs-core/internal/events"
)

// Monitor turns rejected legs, failed cycles and exposure drift into alerts.
type Monitor struct {
	Bus  *events.Bus
	Sink AlertSink
}

// Start listens until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Sink == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	stream, stop := m.Bus.SubscribeMany([]events.Event{events.EventLegRejected, events.EventCycleFailed, events.EventExposureDrift}, 50)
	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-stream:
				if !ok {
					return
				}
				if err := m.Sink.Send(formatAlert(env, time.Now())); err != nil {
					log.Printf("alert delivery failed: %v", err)
				}
			}
		}
	}()
}

func formatAlert(env events.Envelope, at time.Time) string {
	return fmt.Sprintf("[%s] %s: %s", at.UTC().Format(time.RFC3339), env.Event, toString(env.Payload))
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%+v", t)
	}
}
