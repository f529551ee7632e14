package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/domain"
)

// ErrLanesUnavailable is returned when the lane simulations failed to construct.
var ErrLanesUnavailable = errors.New("lane simulations unavailable")

// SimulationSet is the pending result of constructing both lane simulations.
type SimulationSet struct {
	done chan struct{}
	sims [2]sim.Simulation
	err  error
}

// ConstructSimulations starts building the left and right simulations in the
// background and returns immediately.
func ConstructSimulations(ctx context.Context, factory sim.Factory, opts sim.Options) *SimulationSet {
	s := &SimulationSet{done: make(chan struct{})}
	go func() {
		defer close(s.done)
		g, gctx := errgroup.WithContext(ctx)
		for i, side := range domain.Sides {
			g.Go(func() error {
				created, err := factory.New(gctx, opts)
				if err != nil {
					return fmt.Errorf("failed to construct %s simulation: %w", side, err)
				}
				s.sims[i] = created
				return nil
			})
		}
		s.err = g.Wait()
	}()
	return s
}

// ResolvedSimulations wraps simulations that already exist.
func ResolvedSimulations(left, right sim.Simulation) *SimulationSet {
	s := &SimulationSet{done: make(chan struct{}), sims: [2]sim.Simulation{left, right}}
	close(s.done)
	return s
}

// Wait blocks until construction finishes or ctx is done.
func (s *SimulationSet) Wait(ctx context.Context) ([2]sim.Simulation, error) {
	select {
	case <-s.done:
		if s.err != nil {
			return [2]sim.Simulation{}, fmt.Errorf("%w: %w", ErrLanesUnavailable, s.err)
		}
		return s.sims, nil
	case <-ctx.Done():
		return [2]sim.Simulation{}, ctx.Err()
	}
}

// Resolved reports, without blocking, whether construction succeeded.
func (s *SimulationSet) Resolved() bool {
	select {
	case <-s.done:
		return s.err == nil
	default:
		return false
	}
}

// LaneState is a snapshot of one playback lane.
type LaneState struct {
	Side           domain.Side      `json:"side"`
	PlayState      domain.PlayState `json:"play_state"`
	Time           int              `json:"time"`
	MaxTimeReached int              `json:"max_time_reached"`
	Length         int              `json:"length"`
	HasTrajectory  bool             `json:"has_trajectory"`
}

type lane struct {
	side      domain.Side
	sim       sim.Simulation
	traj      *domain.Trajectory
	playState domain.PlayState
	time      int
	maxTime   int
}

// advance replays the next action if the lane is playing. An exhausted lane
// stays playing and idles until paused or restarted.
func (l *lane) advance() {
	if l.playState != domain.PlayStatePlaying || l.traj == nil {
		return
	}
	if l.time < len(l.traj.Actions) {
		l.sim.Step(l.traj.Actions[l.time])
		l.sim.Render()
		l.time++
	}
	if l.time > l.maxTime {
		l.maxTime = l.time
	}
}

func (l *lane) snapshot() LaneState {
	return LaneState{
		Side:           l.side,
		PlayState:      l.playState,
		Time:           l.time,
		MaxTimeReached: l.maxTime,
		Length:         l.traj.Len(),
		HasTrajectory:  l.traj != nil,
	}
}

// GameManager owns the two playback lanes and advances them on a shared tick.
type GameManager struct {
	sims       *SimulationSet
	timer      *Timer
	view       ViewSink
	tickLength time.Duration

	mu    sync.Mutex
	lanes []*lane // nil until the simulations resolve
}

// NewGameManager creates a game manager over pending simulations. A nil view
// discards view updates.
func NewGameManager(sims *SimulationSet, timer *Timer, view ViewSink, tickLength time.Duration) *GameManager {
	if view == nil {
		view = nopView{}
	}
	return &GameManager{
		sims:       sims,
		timer:      timer,
		view:       view,
		tickLength: tickLength,
	}
}

// withLanes waits for the simulations, then runs fn with the lanes locked and
// publishes the resulting lane progress.
func (g *GameManager) withLanes(ctx context.Context, fn func(lanes []*lane)) error {
	var progress []LaneState
	err := g.readLanes(ctx, func(lanes []*lane) {
		fn(lanes)
		progress = g.progressLocked()
	})
	if err != nil {
		return err
	}
	g.publish(progress)
	return nil
}

// readLanes waits for the simulations, then runs fn with the lanes locked.
func (g *GameManager) readLanes(ctx context.Context, fn func(lanes []*lane)) error {
	sims, err := g.sims.Wait(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolveLocked(sims)
	fn(g.lanes)
	return nil
}

func (g *GameManager) resolveLocked(sims [2]sim.Simulation) {
	if g.lanes != nil {
		return
	}
	g.lanes = make([]*lane, len(sims))
	for i, s := range sims {
		g.lanes[i] = &lane{side: domain.Sides[i], sim: s, playState: domain.PlayStatePaused}
	}
}

// progressLocked returns the lane snapshots to publish, or nil unless both
// lanes have a trajectory.
func (g *GameManager) progressLocked() []LaneState {
	out := make([]LaneState, 0, len(g.lanes))
	for _, l := range g.lanes {
		if l.traj == nil {
			return nil
		}
		out = append(out, l.snapshot())
	}
	return out
}

func (g *GameManager) publish(progress []LaneState) {
	for _, p := range progress {
		g.view.SetLaneProgress(p.Side, p.Time, p.Length)
	}
}

// Tick advances every playing lane by one action. It never blocks: before the
// simulations resolve it does nothing.
func (g *GameManager) Tick() {
	if !g.sims.Resolved() {
		return
	}
	sims, err := g.sims.Wait(context.Background())
	if err != nil {
		return
	}

	g.mu.Lock()
	g.resolveLocked(sims)
	for _, l := range g.lanes {
		l.advance()
	}
	progress := g.progressLocked()
	g.mu.Unlock()

	g.publish(progress)
}

// Run ticks every tick length until ctx is done.
func (g *GameManager) Run(ctx context.Context) {
	ticker := time.NewTicker(g.tickLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Tick()
		}
	}
}

// SetTrajectories replaces both lanes with fresh ones for the given
// trajectories: paused at time zero with the simulations at the start states.
func (g *GameManager) SetTrajectories(ctx context.Context, trajs [2]*domain.Trajectory) error {
	return g.withLanes(ctx, func(lanes []*lane) {
		for i, l := range lanes {
			next := &lane{side: l.side, sim: l.sim, traj: trajs[i], playState: domain.PlayStatePaused}
			if next.traj != nil {
				next.sim.SetState(next.traj.StartState)
				next.sim.Render()
			}
			lanes[i] = next
		}
	})
}

// Play starts playback of a lane and starts the response timer.
func (g *GameManager) Play(ctx context.Context, side domain.Side) error {
	return g.withLanes(ctx, func(lanes []*lane) {
		g.timer.Start()
		lanes[side.Index()].playState = domain.PlayStatePlaying
	})
}

// Pause pauses a lane.
func (g *GameManager) Pause(ctx context.Context, side domain.Side) error {
	return g.withLanes(ctx, func(lanes []*lane) {
		lanes[side.Index()].playState = domain.PlayStatePaused
	})
}

// Restart rewinds a lane to its start state and pauses it. The high-water
// mark is kept.
func (g *GameManager) Restart(ctx context.Context, side domain.Side) error {
	return g.withLanes(ctx, func(lanes []*lane) {
		l := lanes[side.Index()]
		l.time = 0
		l.playState = domain.PlayStatePaused
		if l.traj != nil {
			l.sim.SetState(l.traj.StartState)
			l.sim.Render()
		}
	})
}

// PlayBoth plays the left lane, then the right.
func (g *GameManager) PlayBoth(ctx context.Context) error {
	return g.both(ctx, g.Play)
}

// PauseBoth pauses the left lane, then the right.
func (g *GameManager) PauseBoth(ctx context.Context) error {
	return g.both(ctx, g.Pause)
}

// RestartBoth restarts the left lane, then the right.
func (g *GameManager) RestartBoth(ctx context.Context) error {
	return g.both(ctx, g.Restart)
}

func (g *GameManager) both(ctx context.Context, fn func(context.Context, domain.Side) error) error {
	for _, side := range domain.Sides {
		if err := fn(ctx, side); err != nil {
			return err
		}
	}
	return nil
}

// MaxSteps returns each lane's high-water mark, left first.
func (g *GameManager) MaxSteps(ctx context.Context) ([]int, error) {
	var out []int
	err := g.readLanes(ctx, func(lanes []*lane) {
		for _, l := range lanes {
			out = append(out, l.maxTime)
		}
	})
	return out, err
}

// Lanes returns lane snapshots without waiting; nil before the simulations resolve.
func (g *GameManager) Lanes() []LaneState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lanes == nil {
		return nil
	}
	out := make([]LaneState, len(g.lanes))
	for i, l := range g.lanes {
		out[i] = l.snapshot()
	}
	return out
}
