// Package http provides the control API for the replay engine.
package http

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the control API server. It also mounts the viewer WebSocket.
type Server struct {
	echo *echo.Echo
}

// NewServer creates a new control API server. ws serves GET /ws; nil leaves it unmounted.
func NewServer(h *Handler, ws echo.HandlerFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	h.RegisterRoutes(e)
	if ws != nil {
		e.GET("/ws", ws)
	}

	return &Server{echo: e}
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
