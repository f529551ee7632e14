package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/replay/internal/domain"
	"github.com/xiaot623/gogo/replay/internal/service"
)

// Engine is the replay manager as seen by the control API.
type Engine interface {
	Control(ctx context.Context, action domain.LaneAction, sides ...domain.Side) error
	Select(ctx context.Context, side domain.Side) error
	NextQuestion(ctx context.Context) error
	HandleVisibilityChange(ctx context.Context, state domain.VisibilityState) error
	Status() service.SessionSnapshot
}

// ViewerCounter reports how many viewers are attached.
type ViewerCounter interface {
	ConnectionCount() int
}

// Ensure ReplayManager implements Engine interface.
var _ Engine = (*service.ReplayManager)(nil)

// Handler handles control API requests.
type Handler struct {
	engine  Engine
	viewers ViewerCounter
}

// NewHandler creates a new handler. viewers may be nil.
func NewHandler(engine Engine, viewers ViewerCounter) *Handler {
	return &Handler{engine: engine, viewers: viewers}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	e.GET("/v1/session", h.GetSession)
	e.POST("/v1/lanes/:side/:action", h.ControlLanes)
	e.POST("/v1/select/:side", h.SelectSide)
	e.POST("/v1/visibility", h.SetVisibility)
	e.POST("/v1/questions/next", h.NextQuestion)
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	viewers := 0
	if h.viewers != nil {
		viewers = h.viewers.ConnectionCount()
	}
	status := h.engine.Status()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"session_status": status.Status,
		"viewers":        viewers,
	})
}

// GetSession returns the session snapshot.
// GET /v1/session
func (h *Handler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Status())
}

// ControlLanes plays, pauses or restarts one lane or both.
// POST /v1/lanes/:side/:action
func (h *Handler) ControlLanes(c echo.Context) error {
	sides, err := domain.ParseSides(c.Param("side"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	action, err := domain.ParseLaneAction(c.Param("action"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.engine.Control(c.Request().Context(), action, sides...); err != nil {
		return h.engineError(c, "control lanes", err)
	}
	return c.JSON(http.StatusOK, h.engine.Status())
}

// SelectSide records the viewer's preferred side.
// POST /v1/select/:side
func (h *Handler) SelectSide(c echo.Context) error {
	side, err := domain.ParseSide(c.Param("side"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.engine.Select(c.Request().Context(), side); err != nil {
		return h.engineError(c, "select", err)
	}
	return c.JSON(http.StatusOK, h.engine.Status())
}

// VisibilityRequest is the body of POST /v1/visibility.
type VisibilityRequest struct {
	State domain.VisibilityState `json:"state"`
}

// SetVisibility reports the host visibility; hidden flushes pending answers.
// POST /v1/visibility
func (h *Handler) SetVisibility(c echo.Context) error {
	var req VisibilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	switch req.State {
	case domain.VisibilityHidden, domain.VisibilityVisible:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "state must be hidden or visible"})
	}

	if err := h.engine.HandleVisibilityChange(c.Request().Context(), req.State); err != nil {
		return h.engineError(c, "flush answers", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

// NextQuestion loads a question when none is pending, e.g. after a failed fetch.
// POST /v1/questions/next
func (h *Handler) NextQuestion(c echo.Context) error {
	if err := h.engine.NextQuestion(c.Request().Context()); err != nil {
		return h.engineError(c, "fetch next question", err)
	}
	return c.JSON(http.StatusOK, h.engine.Status())
}

func (h *Handler) engineError(c echo.Context, op string, err error) error {
	log.Printf("ERROR: failed to %s: %v", op, err)
	status := http.StatusBadGateway
	if errors.Is(err, service.ErrLanesUnavailable) {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"error": "failed to " + op + ": " + err.Error()})
}
