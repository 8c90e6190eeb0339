package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/treehouse-chat/treehouse-backend/pkg/metrics"
)

// Event is the envelope fanned out to channel subscribers.
type Event struct {
	Type      string    `json:"type"`
	ChannelID uuid.UUID `json:"channel_id"`
	Payload   any       `json:"payload"`
	SentAt    time.Time `json:"sent_at"`
}

type eventSink interface {
	Publish(ctx context.Context, channel string, payload any) error
	RealtimeChannelKey(channelID string) string
}

// Broker pushes channel events into the pub/sub fan-out.
type Broker struct {
	sink    eventSink
	metrics *metrics.RealtimeMetrics
	now     func() time.Time
}

// NewBroker constructs a broker publishing through the provided sink.
func NewBroker(sink eventSink, m *metrics.RealtimeMetrics) (*Broker, error) {
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	return &Broker{sink: sink, metrics: m, now: time.Now}, nil
}

// Publish encodes the event envelope and sends it to the channel's fan-out key.
func (b *Broker) Publish(ctx context.Context, channelID uuid.UUID, eventType string, payload any) error {
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	raw, err := json.Marshal(Event{
		Type:      eventType,
		ChannelID: channelID,
		Payload:   payload,
		SentAt:    b.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := b.sink.Publish(ctx, b.sink.RealtimeChannelKey(channelID.String()), raw); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	b.metrics.IncPublished(eventType)
	return nil
}
