// Package ws serves the viewer WebSocket: viewers receive lane updates and
// send playback controls and selections.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/replay/internal/config"
	"github.com/xiaot623/gogo/replay/internal/domain"
	"github.com/xiaot623/gogo/replay/internal/hub"
	"github.com/xiaot623/gogo/replay/internal/protocol"
	"github.com/xiaot623/gogo/replay/internal/service"
)

// Engine is the part of the replay manager viewers can drive.
type Engine interface {
	Control(ctx context.Context, action domain.LaneAction, sides ...domain.Side) error
	Select(ctx context.Context, side domain.Side) error
	HandleVisibilityChange(ctx context.Context, state domain.VisibilityState) error
	Status() service.SessionSnapshot
}

// Snapshotter replays the current view to a viewer that just joined.
type Snapshotter interface {
	Snapshot() []interface{}
}

// Ensure the concrete types fit.
var (
	_ Engine      = (*service.ReplayManager)(nil)
	_ Snapshotter = (*hub.View)(nil)
)

// Server handles viewer WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	engine   Engine
	view     Snapshotter
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, engine Engine, view Snapshotter) *Server {
	return &Server{
		cfg:    cfg,
		hub:    h,
		engine: engine,
		view:   view,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and runs the connection's pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads viewer messages until the socket closes. A viewer that
// joined the session and goes away is treated like a hidden page.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		joined := s.hub.SessionOf(conn) != ""
		s.hub.Unregister(conn)
		conn.Close()
		if joined {
			s.flush(domain.VisibilityHidden)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump drains the connection's send queue and keeps it alive with pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches a viewer message by type.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	if baseMsg.Type != protocol.TypeHello && s.hub.SessionOf(conn) == "" {
		s.sendError(conn, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	switch baseMsg.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeControl:
		s.handleControl(conn, data)
	case protocol.TypeSelect:
		s.handleSelect(conn, data)
	case protocol.TypeVisibility:
		s.handleVisibility(conn, data)
	default:
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello joins the viewer to the engine's session and replays the
// current view to it.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	status := s.engine.Status()
	s.hub.BindSession(conn, status.SessionID)

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			SessionID: status.SessionID,
		},
		MaxQuestions: status.MaxQuestions,
	}
	s.hub.SendJSONToConnection(conn, ack)
	for _, msg := range s.view.Snapshot() {
		if err := s.hub.SendJSONToConnection(conn, msg); err != nil {
			log.Printf("WARN: failed to replay view to %s: %v", conn.ID, err)
			break
		}
	}

	log.Printf("Viewer %s joined session %s", conn.ID, status.SessionID)
}

// handleControl applies a playback action.
func (s *Server) handleControl(conn *hub.Connection, data []byte) {
	var msg protocol.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid control message")
		return
	}

	action, err := domain.ParseLaneAction(msg.Action)
	if err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, err.Error())
		return
	}
	sides, err := domain.ParseSides(msg.Side)
	if err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, err.Error())
		return
	}

	sessionID := s.hub.SessionOf(conn)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BackendTimeout())
		defer cancel()

		if err := s.engine.Control(ctx, action, sides...); err != nil {
			log.Printf("Control %s %s failed: %v", action, msg.Side, err)
			s.sendErrorToSession(sessionID, protocol.ErrorCodeInternalError, err.Error())
		}
	}()
}

// handleSelect records the viewer's choice. Fetching the next question may
// take a while, so it runs off the read loop.
func (s *Server) handleSelect(conn *hub.Connection, data []byte) {
	var msg protocol.SelectMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid select message")
		return
	}

	side, err := domain.ParseSide(msg.Side)
	if err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, err.Error())
		return
	}

	sessionID := s.hub.SessionOf(conn)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BackendTimeout())
		defer cancel()

		if err := s.engine.Select(ctx, side); err != nil {
			log.Printf("Select %s failed: %v", side, err)
			s.sendErrorToSession(sessionID, protocol.ErrorCodeBackendFail, err.Error())
		}
	}()
}

// handleVisibility flushes pending answers when the viewer's page is hidden.
func (s *Server) handleVisibility(conn *hub.Connection, data []byte) {
	var msg protocol.VisibilityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid visibility message")
		return
	}

	switch msg.State {
	case domain.VisibilityHidden, domain.VisibilityVisible:
	default:
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "unknown visibility state: "+string(msg.State))
		return
	}

	sessionID := s.hub.SessionOf(conn)
	go func() {
		if err := s.flush(msg.State); err != nil {
			s.sendErrorToSession(sessionID, protocol.ErrorCodeBackendFail, err.Error())
		}
	}()
}

func (s *Server) flush(state domain.VisibilityState) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushTimeout())
	defer cancel()
	return s.engine.HandleVisibilityChange(ctx, state)
}

// sendError sends an error message to one viewer.
func (s *Server) sendError(conn *hub.Connection, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			SessionID: s.hub.SessionOf(conn),
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}

// sendErrorToSession sends an error message to every viewer of a session.
// Work running off the read loop uses it since the connection may be gone.
func (s *Server) sendErrorToSession(sessionID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		Code:    code,
		Message: message,
	}
	s.hub.BroadcastJSON(sessionID, errMsg)
}
