// Package service implements the comparison playback and answer orchestration engine.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/replay/internal/adapter/backend"
	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Transport posts JSON bodies to the backend.
type Transport interface {
	Post(ctx context.Context, path string, body interface{}) (*backend.Response, error)
}

// Ensure the backend client satisfies Transport.
var _ Transport = (*backend.Client)(nil)

// ViewSink receives everything the host needs to draw the comparison.
type ViewSink interface {
	SetCanvas(side domain.Side, canvas sim.Canvas)
	SetProgressText(text string)
	SetLaneProgress(side domain.Side, time, length int)
}

// Navigator moves the host to another route.
type Navigator interface {
	Navigate(route string)
}

// Session is the per-load context shared by all components.
type Session struct {
	ID    string
	Clock Clock
}

// NewSession creates a session with a fresh id. A nil clock means the system clock.
func NewSession(clock Clock) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Session{
		ID:    "sess_" + uuid.New().String(),
		Clock: clock,
	}
}

type nopView struct{}

func (nopView) SetCanvas(domain.Side, sim.Canvas)     {}
func (nopView) SetProgressText(string)                {}
func (nopView) SetLaneProgress(domain.Side, int, int) {}
func (nopView) Navigate(string)                       {}
