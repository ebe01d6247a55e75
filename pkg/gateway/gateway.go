// Package gateway exposes the engine over WebSocket: clients submit
// commands, cancel them by execution ID and receive step updates.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neuroassist/neuroassist/pkg/bus"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

const (
	sendQueueSize = 64
	readTimeout   = 120 * time.Second
	writeTimeout  = 10 * time.Second
	pingInterval  = 50 * time.Second
)

// Frame is what clients send.
type Frame struct {
	Type        string `json:"type"` // "submit", "cancel", "ping"
	RequestID   string `json:"request_id,omitempty"`
	Command     string `json:"command,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// Releaser frees per-client resources when a connection goes away.
type Releaser interface {
	Release(clientID string)
}

type Server struct {
	addr     string
	bus      *bus.MessageBus
	releaser Releaser
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func New(addr string, messageBus *bus.MessageBus, releaser Releaser) *Server {
	return &Server{
		addr:     addr,
		bus:      messageBus,
		releaser: releaser,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-host tools only; the listen address is the access control.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[string]*client{},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	return mux
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.routeEvents(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("gateway", "Listening", map[string]interface{}{"addr": s.addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("gateway", "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendQueueSize)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	logger.InfoCF("gateway", "Client connected", map[string]interface{}{
		"client_id": c.id,
		"remote":    conn.RemoteAddr().String(),
	})

	go s.writePump(c)
	s.readPump(r.Context(), c)
}

func (s *Server) readPump(ctx context.Context, c *client) {
	defer s.drop(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnCF("gateway", "WebSocket read error", map[string]interface{}{
					"client_id": c.id,
					"error":     err.Error(),
				})
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch frame.Type {
		case "ping":
			s.enqueue(c, map[string]string{"type": "pong"})
		case "submit":
			s.publish(ctx, c, bus.Request{ClientID: c.id, RequestID: frame.RequestID, Kind: bus.RequestSubmit, Command: frame.Command})
		case "cancel":
			s.publish(ctx, c, bus.Request{ClientID: c.id, RequestID: frame.RequestID, Kind: bus.RequestCancel, ExecutionID: frame.ExecutionID})
		default:
			s.enqueue(c, bus.Event{RequestID: frame.RequestID, Type: bus.EventError, Error: "unknown frame type: " + frame.Type})
		}
	}
}

func (s *Server) publish(ctx context.Context, c *client, req bus.Request) {
	if err := s.bus.PublishRequest(ctx, req); err != nil {
		s.enqueue(c, bus.Event{RequestID: req.RequestID, Type: bus.EventError, Error: err.Error()})
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// routeEvents delivers bus events to the client that owns them.
func (s *Server) routeEvents(ctx context.Context) {
	for {
		ev, ok := s.bus.ConsumeEvent(ctx)
		if !ok {
			return
		}
		s.mu.RLock()
		c, found := s.clients[ev.ClientID]
		s.mu.RUnlock()
		if !found {
			continue
		}
		s.enqueue(c, ev)
	}
}

func (s *Server) enqueue(c *client, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.ErrorCF("gateway", "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, live := s.clients[c.id]; !live {
		return
	}
	select {
	case c.send <- b:
	default:
		logger.WarnCF("gateway", "Client send queue full, dropping frame", map[string]interface{}{"client_id": c.id})
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, live := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()

	c.once.Do(func() { close(c.send) })
	_ = c.conn.Close()
	if live && s.releaser != nil {
		s.releaser.Release(c.id)
	}
	logger.InfoCF("gateway", "Client disconnected", map[string]interface{}{"client_id": c.id})
}

func (s *Server) closeAll() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}
