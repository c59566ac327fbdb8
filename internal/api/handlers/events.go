package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/service"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Producers only send control frames on this stream
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Producers are services, not browsers; the stream is
		// authenticated by bearer key instead.
		return true
	},
}

// EventHandler streams commit events to producers over a websocket.
type EventHandler struct {
	hub    *service.EventHub
	logger *zap.Logger
}

func NewEventHandler(hub *service.EventHub, logger *zap.Logger) *EventHandler {
	return &EventHandler{hub: hub, logger: logger}
}

func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Warn("event stream upgrade failed", zap.Error(err))
		return
	}

	id, events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(id)
	defer conn.Close()

	h.logger.Debug("event subscriber connected",
		zap.String("subscriber_id", id.String()),
		zap.String("remote_addr", r.RemoteAddr),
	)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "event hub closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("event stream write failed",
					zap.String("subscriber_id", id.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			h.logger.Debug("event subscriber disconnected", zap.String("subscriber_id", id.String()))
			return
		}
	}
}
