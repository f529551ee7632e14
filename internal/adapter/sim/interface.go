// Package sim provides an abstraction for the simulation engines played back in each lane.
package sim

import (
	"context"

	"github.com/xiaot623/gogo/replay/internal/domain"
)

// Options configures simulation construction. Keys are engine specific.
type Options map[string]interface{}

// Simulation is one steppable, renderable engine instance.
type Simulation interface {
	// Step applies one action.
	Step(action domain.Action)

	// Render redraws the canvas from the current state.
	Render()

	// State returns a copy of the current state.
	State() domain.SimState

	// SetState replaces the current state.
	SetState(state domain.SimState)

	// Canvas returns the surface Render draws into.
	Canvas() Canvas
}

// Canvas is a render surface that can be mounted into a view.
type Canvas interface {
	// Frame returns the most recently rendered frame.
	Frame() Frame
}

// Frame is a rendered snapshot of a canvas.
type Frame struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Rows   []string `json:"rows"`
}

// Factory constructs simulations.
type Factory interface {
	New(ctx context.Context, opts Options) (Simulation, error)
}
