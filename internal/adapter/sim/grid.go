package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xiaot623/gogo/replay/internal/domain"
)

// moves maps movement actions to grid deltas. Actions past the table
// (dig, use, rotate) leave the agent in place.
var moves = [...][2]int{
	{-1, -1}, // left+down
	{-1, 0},  // left
	{-1, 1},  // left+up
	{0, -1},  // down
	{0, 0},   // no-op
	{0, 1},   // up
	{1, -1},  // right+down
	{1, 0},   // right
	{1, 1},   // right+up
}

// cellGlyphs renders grid cell values; values past the table render as '?'.
const cellGlyphs = " .#*o+"

// GridFactory builds headless grid simulations.
type GridFactory struct{}

// NewGridFactory creates a new grid factory.
func NewGridFactory() *GridFactory {
	return &GridFactory{}
}

// Ensure GridFactory implements Factory interface.
var _ Factory = (*GridFactory)(nil)

// New creates a grid simulation sized by the grid_width/grid_height options.
func (f *GridFactory) New(ctx context.Context, opts Options) (Simulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = Merge(DefaultOptions(), opts)
	width, err := intOption(opts, "grid_width")
	if err != nil {
		return nil, err
	}
	height, err := intOption(opts, "grid_height")
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}

	g := &GridSimulation{
		state: domain.SimState{
			Grid:       make([]int32, width*height),
			GridWidth:  width,
			GridHeight: height,
		},
		canvas: &gridCanvas{},
	}
	g.Render()
	return g, nil
}

func intOption(opts Options, key string) (int, error) {
	switch v := opts[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	}
	return 0, fmt.Errorf("option %s must be a number, got %v", key, opts[key])
}

// GridSimulation is a minimal grid world: an agent moving towards an exit.
type GridSimulation struct {
	mu     sync.Mutex
	state  domain.SimState
	steps  int
	canvas *gridCanvas
}

// Ensure GridSimulation implements Simulation interface.
var _ Simulation = (*GridSimulation)(nil)

// Step moves the agent, clamped to the grid bounds.
func (g *GridSimulation) Step(action domain.Action) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.steps++
	if action < 0 || int(action) >= len(moves) {
		return
	}
	d := moves[action]
	g.state.AgentX = clamp(g.state.AgentX+d[0], 0, g.state.GridWidth-1)
	g.state.AgentY = clamp(g.state.AgentY+d[1], 0, g.state.GridHeight-1)
}

// Render redraws the canvas. Row 0 of the frame is the top of the grid.
func (g *GridSimulation) Render() {
	g.mu.Lock()
	s := g.state
	g.mu.Unlock()

	rows := make([]string, 0, s.GridHeight)
	var b strings.Builder
	for y := s.GridHeight - 1; y >= 0; y-- {
		b.Reset()
		for x := 0; x < s.GridWidth; x++ {
			switch {
			case x == s.AgentX && y == s.AgentY:
				b.WriteByte('A')
			case x == s.ExitX && y == s.ExitY:
				b.WriteByte('E')
			default:
				b.WriteByte(glyph(s, x, y))
			}
		}
		rows = append(rows, b.String())
	}
	g.canvas.set(Frame{Width: s.GridWidth, Height: s.GridHeight, Rows: rows})
}

func glyph(s domain.SimState, x, y int) byte {
	idx := y*s.GridWidth + x
	if idx >= len(s.Grid) {
		return ' '
	}
	v := s.Grid[idx]
	if v < 0 || int(v) >= len(cellGlyphs) {
		return '?'
	}
	return cellGlyphs[v]
}

// State returns a copy of the current state.
func (g *GridSimulation) State() domain.SimState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}

// SetState replaces the current state.
func (g *GridSimulation) SetState(state domain.SimState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state.Clone()
}

// Steps returns the number of actions applied so far.
func (g *GridSimulation) Steps() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.steps
}

// Canvas returns the render surface.
func (g *GridSimulation) Canvas() Canvas {
	return g.canvas
}

type gridCanvas struct {
	mu    sync.RWMutex
	frame Frame
}

func (c *gridCanvas) set(f Frame) {
	c.mu.Lock()
	c.frame = f
	c.mu.Unlock()
}

func (c *gridCanvas) Frame() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]string, len(c.frame.Rows))
	copy(rows, c.frame.Rows)
	return Frame{Width: c.frame.Width, Height: c.frame.Height, Rows: rows}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
