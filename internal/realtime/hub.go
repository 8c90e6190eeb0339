package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
	"github.com/treehouse-chat/treehouse-backend/pkg/metrics"
	"github.com/treehouse-chat/treehouse-backend/pkg/redis"
)

const defaultSendBuffer = 32

// EventStream is one open pub/sub stream delivering raw event payloads.
type EventStream interface {
	Channel(opts ...goredis.ChannelOption) <-chan *goredis.Message
	Close() error
}

// StreamOpener opens the fan-out stream backing one chat channel.
type StreamOpener interface {
	OpenStream(ctx context.Context, channelID string) (EventStream, error)
}

// RedisStreams adapts the shared redis client to the StreamOpener surface.
type RedisStreams struct {
	Client *redis.Client
}

func (r RedisStreams) OpenStream(ctx context.Context, channelID string) (EventStream, error) {
	return r.Client.Subscribe(ctx, r.Client.RealtimeChannelKey(channelID))
}

// Subscriber receives every event published to one channel. Close releases it;
// the events channel is closed by the hub, never by the caller.
type Subscriber struct {
	hub       *Hub
	channelID uuid.UUID
	events    chan []byte
	once      sync.Once
}

// Events yields encoded event envelopes in publish order.
func (s *Subscriber) Events() <-chan []byte {
	return s.events
}

// Close detaches the subscriber from the hub.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

type fanout struct {
	stream EventStream
	subs   map[*Subscriber]struct{}
}

// Hub multiplexes pub/sub streams onto per-connection subscriber channels.
// One stream is held open per chat channel while at least one subscriber
// remains attached.
type Hub struct {
	opener  StreamOpener
	metrics *metrics.RealtimeMetrics
	logg    *logger.Logger
	buffer  int

	mu       sync.Mutex
	closed   bool
	channels map[uuid.UUID]*fanout
}

// HubParams bundles the dependencies required to build a hub.
type HubParams struct {
	Opener     StreamOpener
	Metrics    *metrics.RealtimeMetrics
	Logger     *logger.Logger
	SendBuffer int
}

// NewHub constructs a hub fanning out events from the provided opener.
func NewHub(params HubParams) (*Hub, error) {
	if params.Opener == nil {
		return nil, fmt.Errorf("stream opener is required")
	}
	buffer := params.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		opener:   params.Opener,
		metrics:  params.Metrics,
		logg:     params.Logger,
		buffer:   buffer,
		channels: make(map[uuid.UUID]*fanout),
	}, nil
}

// Subscribe attaches a new subscriber to the channel's fan-out, opening the
// underlying stream when this is the first subscriber.
func (h *Hub) Subscribe(ctx context.Context, channelID uuid.UUID) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub is closed")
	}

	f, ok := h.channels[channelID]
	if !ok {
		stream, err := h.opener.OpenStream(ctx, channelID.String())
		if err != nil {
			return nil, fmt.Errorf("opening event stream: %w", err)
		}
		f = &fanout{
			stream: stream,
			subs:   make(map[*Subscriber]struct{}),
		}
		h.channels[channelID] = f
		go h.pump(channelID, stream)
	}

	sub := &Subscriber{
		hub:       h,
		channelID: channelID,
		events:    make(chan []byte, h.buffer),
	}
	f.subs[sub] = struct{}{}
	h.metrics.ConnOpened()
	return sub, nil
}

// pump drains one stream and broadcasts each payload until the stream closes.
func (h *Hub) pump(channelID uuid.UUID, stream EventStream) {
	for msg := range stream.Channel() {
		h.broadcast(channelID, []byte(msg.Payload))
	}
	h.dropChannel(channelID, stream)
}

func (h *Hub) broadcast(channelID uuid.UUID, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.channels[channelID]
	if !ok {
		return
	}
	for sub := range f.subs {
		select {
		case sub.events <- payload:
		default:
			h.metrics.IncDropped(eventTypeOf(payload))
		}
	}
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.channels[sub.channelID]
	if !ok {
		return
	}
	if _, attached := f.subs[sub]; !attached {
		return
	}
	delete(f.subs, sub)
	close(sub.events)
	h.metrics.ConnClosed()

	if len(f.subs) == 0 {
		delete(h.channels, sub.channelID)
		if err := f.stream.Close(); err != nil && h.logg != nil {
			h.logg.Error(context.Background(), "closing event stream", err)
		}
	}
}

// dropChannel tears down a fan-out whose stream ended on its own, for example
// when the broker connection is lost.
func (h *Hub) dropChannel(channelID uuid.UUID, stream EventStream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.channels[channelID]
	if !ok || f.stream != stream {
		return
	}
	delete(h.channels, channelID)
	for sub := range f.subs {
		close(sub.events)
		h.metrics.ConnClosed()
	}
}

// Close detaches every subscriber and closes all open streams.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for channelID, f := range h.channels {
		for sub := range f.subs {
			close(sub.events)
			h.metrics.ConnClosed()
		}
		if err := f.stream.Close(); err != nil && h.logg != nil {
			h.logg.Error(context.Background(), "closing event stream", err)
		}
		delete(h.channels, channelID)
	}
}

func eventTypeOf(payload []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.Type == "" {
		return "unknown"
	}
	return head.Type
}
