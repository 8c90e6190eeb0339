package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
)

// Pump drives one websocket connection: fan-out events flow out, pings keep
// the peer alive, and any inbound traffic beyond pongs is discarded.
type Pump struct {
	cfg  config.RealtimeConfig
	logg *logger.Logger
}

// NewPump constructs a pump with the provided realtime tuning.
func NewPump(cfg config.RealtimeConfig, logg *logger.Logger) *Pump {
	return &Pump{cfg: cfg, logg: logg}
}

// Run blocks until the peer disconnects, the subscriber is closed, or the
// context is cancelled. It owns the connection and closes it on return.
func (p *Pump) Run(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	defer conn.Close()
	defer sub.Close()

	conn.SetReadLimit(p.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(p.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(p.cfg.PongTimeout))
	})

	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if p.logg != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					p.logg.Debug(ctx, "websocket read ended: "+err.Error())
				}
				return
			}
		}
	}()

	pings := time.NewTicker(p.cfg.PingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			p.writeClose(conn, websocket.CloseGoingAway)
			return
		case <-peerGone:
			return
		case payload, ok := <-sub.Events():
			if !ok {
				p.writeClose(conn, websocket.CloseNormalClosure)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *Pump) writeClose(conn *websocket.Conn, code int) {
	deadline := time.Now().Add(p.cfg.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
}
