// Package web provides the default (non-MQTT) realization of the bus
// Publisher contract: a websocket hub that broadcasts every published
// snapshot to whatever dashboard or test client is watching, the same
// mechanism the teacher uses to push product state to its front end.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub manages every connected websocket client and broadcasts messages to
// all of them.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewHub creates a Hub. Call Run in its own goroutine before using it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
		logger:     logger.With("component", "web.Hub"),
	}
}

// Run is the Hub's event loop; it never returns.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn("websocket write failed", "error", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements bus.Publisher by broadcasting {topic, payload} to every
// connected client. Topic is carried in the envelope so one websocket
// connection can watch every topic at once.
func (h *Hub) Publish(topic string, payload interface{}) {
	envelope := struct {
		Topic   string      `json:"topic"`
		Payload interface{} `json:"payload"`
	}{Topic: topic, Payload: payload}

	message, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to marshal publish envelope", "error", err, "topic", topic)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "topic", topic)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs upgrades an HTTP request to a websocket connection and registers
// it with the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	h.register <- conn
}
