package events

import "time"

// Event enumerates topics published inside the pairs engine.
type Event string

const (
	EventPriceTick        Event = "price_tick"
	EventSignalsPublished Event = "signals.published"
	EventPositionOpened   Event = "position.opened"
	EventPositionClosed   Event = "position.closed"
	EventLegSubmitted     Event = "leg.submitted"
	EventLegRejected      Event = "leg.rejected"
	EventCycleFailed      Event = "cycle.failed"
	EventExposureDrift    Event = "exposure.drift"
)

// StreamEvents are forwarded to websocket clients.
var StreamEvents = []Event{
	EventPriceTick,
	EventSignalsPublished,
	EventPositionOpened,
	EventPositionClosed,
	EventLegRejected,
	EventCycleFailed,
	EventExposureDrift,
}

// PriceTick is a last-trade update for one symbol.
type PriceTick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Envelope tags a payload with its topic for consumers that multiplex topics.
type Envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}
