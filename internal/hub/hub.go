// Package hub fans replay updates out to connected viewers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrBufferFull is returned when a viewer's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// sendBuffer is the per-viewer queue length.
const sendBuffer = 256

// Connection is one viewer attached over WebSocket.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu        sync.Mutex // serialises writes to Conn
	sessionID string     // guarded by the hub's mu
}

// Hub tracks viewer connections and which session each one joined.
type Hub struct {
	connections map[string]*Connection

	// sessions maps session id to the ids of the connections that joined it
	sessions map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *SessionMessage
	done       chan struct{}

	mu sync.RWMutex
}

// SessionMessage is a payload addressed to every viewer of a session.
type SessionMessage struct {
	SessionID string
	Data      []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *SessionMessage, sendBuffer),
		done:        make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every remaining connection's send queue.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for id, conn := range h.connections {
			close(conn.Send)
			delete(h.connections, id)
		}
		h.sessions = make(map[string]map[string]bool)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			log.Printf("Viewer connected: %s", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.unbindLocked(conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("Viewer disconnected: %s", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.sessions[msg.SessionID] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					// The read loop unregisters once the socket is closed.
					log.Printf("WARN: viewer %s buffer full, disconnecting", connID)
					go conn.Close()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection wraps a WebSocket in a connection with a fresh id. It is not
// registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, sendBuffer),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection and closes its send queue.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// BindSession joins a connection to a session, leaving any previous one.
func (h *Hub) BindSession(conn *Connection, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(conn)
	conn.sessionID = sessionID
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]bool)
	}
	h.sessions[sessionID][conn.ID] = true
}

func (h *Hub) unbindLocked(conn *Connection) {
	if conn.sessionID == "" || h.sessions[conn.sessionID] == nil {
		return
	}
	delete(h.sessions[conn.sessionID], conn.ID)
	if len(h.sessions[conn.sessionID]) == 0 {
		delete(h.sessions, conn.sessionID)
	}
}

// SessionOf returns the session a connection joined, or "".
func (h *Hub) SessionOf(conn *Connection) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.sessionID
}

// Broadcast queues data for every viewer of a session. It drops the message
// once the hub has stopped.
func (h *Hub) Broadcast(sessionID string, data []byte) {
	select {
	case h.broadcast <- &SessionMessage{SessionID: sessionID, Data: data}:
	case <-h.done:
	}
}

// BroadcastJSON encodes v and broadcasts it to a session.
func (h *Hub) BroadcastJSON(sessionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, data)
	return nil
}

// SendToConnection queues data for one viewer without blocking.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection encodes v and queues it for one viewer.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of attached viewers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasViewers reports whether any viewer joined the session.
func (h *Hub) HasViewers(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// WriteMessage writes to the socket, serialised with other writers.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the socket.
func (c *Connection) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}
