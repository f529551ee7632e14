// Package protocol defines the WebSocket message protocol between viewers and the replay engine.
package protocol

import (
	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/domain"
)

// Message types from viewer to engine
const (
	TypeHello      = "hello"
	TypeControl    = "control"
	TypeSelect     = "select"
	TypeVisibility = "visibility"
)

// Message types from engine to viewer
const (
	TypeHelloAck = "hello_ack"
	TypeCanvas   = "canvas"
	TypeLane     = "lane"
	TypeProgress = "progress"
	TypeNavigate = "navigate"
	TypeError    = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage is sent by a viewer to join the session.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	MaxQuestions int `json:"max_questions"`
}

// ControlMessage plays, pauses or restarts a lane. Side may be "both".
type ControlMessage struct {
	BaseMessage
	Action string `json:"action"`
	Side   string `json:"side"`
}

// SelectMessage records the viewer's preferred side.
type SelectMessage struct {
	BaseMessage
	Side string `json:"side"`
}

// VisibilityMessage reports the viewer's page visibility.
type VisibilityMessage struct {
	BaseMessage
	State domain.VisibilityState `json:"state"`
}

// CanvasMessage mounts a lane's canvas.
type CanvasMessage struct {
	BaseMessage
	Side  domain.Side `json:"side"`
	Frame sim.Frame   `json:"frame"`
}

// LaneMessage carries a lane's playback position and current frame.
type LaneMessage struct {
	BaseMessage
	Side   domain.Side `json:"side"`
	Time   int         `json:"time"`
	Length int         `json:"length"`
	Frame  *sim.Frame  `json:"frame,omitempty"`
}

// ProgressMessage carries the "n/max" progress text.
type ProgressMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// NavigateMessage tells the viewer to leave for another route.
type NavigateMessage struct {
	BaseMessage
	Route string `json:"route"`
}

// ErrorMessage is sent when a viewer message cannot be handled.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
	ErrorCodeBackendFail     = "backend_fail"
)
