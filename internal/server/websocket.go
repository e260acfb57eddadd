package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arrakis-sim/dune-server-go/internal/config"
	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientSendBuffer = 256
	hubBroadcastSize = 256
)

// wsClient is one websocket subscriber. An empty session receives every
// session's notifications.
type wsClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session string
}

type outbound struct {
	session string
	payload []byte
}

// Hub fans engine notifications out to websocket subscribers.
type Hub struct {
	cfg        config.WebSocketConfig
	logger     *zap.Logger
	clients    map[*wsClient]bool
	broadcast  chan outbound
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	connected  atomic.Int32
	dropped    atomic.Int64
	upgrader   websocket.Upgrader
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan outbound, hubBroadcastSize),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.connected.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)
			h.logger.Debug("websocket client registered", zap.String("session_filter", client.session))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connected.Add(-1)
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.session != "" && client.session != msg.session {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow subscriber; drop it.
					close(client.send)
					delete(h.clients, client)
					h.connected.Add(-1)
					h.logger.Warn("dropping slow websocket client", zap.String("session_filter", client.session))
				}
			}
		}
	}
}

// Notify queues a notification for subscribers. It never blocks the engine;
// a full queue drops the notification.
func (h *Hub) Notify(n game.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to encode notification", zap.String("type", n.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{session: n.SessionID, payload: payload}:
	case <-h.done:
	default:
		h.dropped.Add(1)
		h.logger.Warn("notification queue full", zap.String("session_id", n.SessionID), zap.String("type", n.Type))
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

// Dropped returns how many notifications were discarded on a full queue.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeWs upgrades the request and subscribes the connection. The optional
// session query parameter restricts it to one battle session.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, clientSendBuffer),
		session: r.URL.Query().Get("session"),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so control frames are processed. Incoming
// messages are ignored.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	wait := 2 * c.hub.cfg.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartWebSocketServer serves the hub on cfg.Address at cfg.Path. The
// returned server is already accepting connections.
func StartWebSocketServer(cfg config.WebSocketConfig, hub *Hub, logger *zap.Logger) (*http.Server, error) {
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, hub.ServeWs)

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen websocket %s: %w", cfg.Address, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server stopped", zap.Error(err))
		}
	}()
	logger.Info("websocket server listening", zap.String("address", lis.Addr().String()), zap.String("path", path))
	return srv, nil
}
