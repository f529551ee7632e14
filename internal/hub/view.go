package hub

import (
	"log"
	"sync"
	"time"

	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/domain"
	"github.com/xiaot623/gogo/replay/internal/protocol"
	"github.com/xiaot623/gogo/replay/internal/service"
)

// Ensure View can be handed to the replay manager.
var (
	_ service.ViewSink  = (*View)(nil)
	_ service.Navigator = (*View)(nil)
)

type laneProgress struct {
	step, length int
	set          bool
}

// View is the session's view sink: every update is broadcast to the viewers
// of the session and remembered so viewers joining later can catch up.
type View struct {
	hub       *Hub
	sessionID string

	mu       sync.Mutex
	canvases [2]sim.Canvas
	lanes    [2]laneProgress
	progress string
	route    string
}

// NewView creates a view broadcasting to the viewers of sessionID.
func NewView(h *Hub, sessionID string) *View {
	return &View{hub: h, sessionID: sessionID}
}

func (v *View) base(msgType string) protocol.BaseMessage {
	return protocol.BaseMessage{Type: msgType, Ts: time.Now().UnixMilli(), SessionID: v.sessionID}
}

func (v *View) broadcast(msg interface{}) {
	if err := v.hub.BroadcastJSON(v.sessionID, msg); err != nil {
		log.Printf("WARN: failed to broadcast view update: %v", err)
	}
}

// SetCanvas mounts a lane's canvas.
func (v *View) SetCanvas(side domain.Side, canvas sim.Canvas) {
	v.mu.Lock()
	v.canvases[side.Index()] = canvas
	v.mu.Unlock()

	v.broadcast(v.canvasMessage(side, canvas))
}

// SetProgressText updates the session progress text.
func (v *View) SetProgressText(text string) {
	v.mu.Lock()
	v.progress = text
	v.mu.Unlock()

	v.broadcast(protocol.ProgressMessage{BaseMessage: v.base(protocol.TypeProgress), Text: text})
}

// SetLaneProgress updates a lane's position and sends its current frame.
func (v *View) SetLaneProgress(side domain.Side, step, length int) {
	v.mu.Lock()
	v.lanes[side.Index()] = laneProgress{step: step, length: length, set: true}
	canvas := v.canvases[side.Index()]
	v.mu.Unlock()

	v.broadcast(v.laneMessage(side, step, length, canvas))
}

// Navigate sends viewers to another route.
func (v *View) Navigate(route string) {
	v.mu.Lock()
	v.route = route
	v.mu.Unlock()

	v.broadcast(protocol.NavigateMessage{BaseMessage: v.base(protocol.TypeNavigate), Route: route})
}

// Snapshot returns the messages that bring a new viewer up to date, in the
// order they would have been received.
func (v *View) Snapshot() []interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []interface{}
	for i, canvas := range v.canvases {
		if canvas != nil {
			out = append(out, v.canvasMessage(domain.Sides[i], canvas))
		}
	}
	if v.progress != "" {
		out = append(out, protocol.ProgressMessage{BaseMessage: v.base(protocol.TypeProgress), Text: v.progress})
	}
	for i, lp := range v.lanes {
		if lp.set {
			out = append(out, v.laneMessage(domain.Sides[i], lp.step, lp.length, v.canvases[i]))
		}
	}
	if v.route != "" {
		out = append(out, protocol.NavigateMessage{BaseMessage: v.base(protocol.TypeNavigate), Route: v.route})
	}
	return out
}

func (v *View) canvasMessage(side domain.Side, canvas sim.Canvas) protocol.CanvasMessage {
	msg := protocol.CanvasMessage{BaseMessage: v.base(protocol.TypeCanvas), Side: side}
	if canvas != nil {
		msg.Frame = canvas.Frame()
	}
	return msg
}

func (v *View) laneMessage(side domain.Side, step, length int, canvas sim.Canvas) protocol.LaneMessage {
	msg := protocol.LaneMessage{BaseMessage: v.base(protocol.TypeLane), Side: side, Time: step, Length: length}
	if canvas != nil {
		frame := canvas.Frame()
		msg.Frame = &frame
	}
	return msg
}
