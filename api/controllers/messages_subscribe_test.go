package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/treehouse-chat/treehouse-backend/api/middleware"
	"github.com/treehouse-chat/treehouse-backend/internal/realtime"
	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
	"github.com/treehouse-chat/treehouse-backend/pkg/metrics"
)

type subscribeStream struct {
	msgs   chan *goredis.Message
	mu     sync.Mutex
	closed bool
}

func (s *subscribeStream) Channel(_ ...goredis.ChannelOption) <-chan *goredis.Message {
	return s.msgs
}

func (s *subscribeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.msgs)
	}
	return nil
}

type subscribeOpener struct {
	mu      sync.Mutex
	streams map[string]*subscribeStream
}

func (o *subscribeOpener) OpenStream(_ context.Context, channelID string) (realtime.EventStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stream := &subscribeStream{msgs: make(chan *goredis.Message, 16)}
	o.streams[channelID] = stream
	return stream, nil
}

func (o *subscribeOpener) stream(channelID string) *subscribeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streams[channelID]
}

// newSubscribeServer wires MessageSubscribe behind the same logging and
// metrics wrappers the real router uses, with the requester injected the way
// the auth middleware would.
func newSubscribeServer(t *testing.T, userID uuid.UUID, access *stubChannelService) (*httptest.Server, *subscribeOpener) {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test-subscribe", Level: logger.ParseLevel("debug"), Output: io.Discard})
	opener := &subscribeOpener{streams: make(map[string]*subscribeStream)}
	hub, err := realtime.NewHub(realtime.HubParams{Opener: opener, SendBuffer: 8})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	t.Cleanup(hub.Close)

	pump := realtime.NewPump(config.RealtimeConfig{
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
		PingInterval:   time.Second,
		MaxMessageSize: 4096,
	}, logg)

	registry := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(middleware.Logging(logg), middleware.Metrics(metrics.NewHTTPMetrics(registry)))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Get("/api/v1/channels/{channelId}/messages/subscribe", MessageSubscribe(access, hub, pump, logg))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, opener
}

func TestMessageSubscribeStreamsEvents(t *testing.T) {
	userID := uuid.New()
	channelID := uuid.New()
	server, opener := newSubscribeServer(t, userID, &stubChannelService{})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/channels/" + channelID.String() + "/messages/subscribe"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101 got %d", resp.StatusCode)
	}

	stream := opener.stream(channelID.String())
	if stream == nil {
		t.Fatal("expected an open event stream for the channel")
	}
	stream.msgs <- &goredis.Message{Payload: `{"type":"message.created","payload":{"content":"hi"}}`}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(payload), `"type":"message.created"`) {
		t.Fatalf("unexpected event %s", payload)
	}
}

func TestMessageSubscribeRejectsNonMember(t *testing.T) {
	userID := uuid.New()
	channelID := uuid.New()
	access := &stubChannelService{requireErr: pkgerrors.New(pkgerrors.CodeForbidden, "not a channel member")}
	server, _ := newSubscribeServer(t, userID, access)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/channels/" + channelID.String() + "/messages/subscribe"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail for a non-member")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 handshake response got %+v", resp)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
}
