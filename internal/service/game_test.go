package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/replay/internal/domain"
)

func trajectory(actions ...domain.Action) *domain.Trajectory {
	return &domain.Trajectory{
		StartState: domain.SimState{Grid: make([]int32, 9), GridWidth: 3, GridHeight: 3, ExitX: 2, ExitY: 2},
		Actions:    actions,
	}
}

func newTestGame(t *testing.T) (*GameManager, *recordingSim, *recordingSim, *recordingView, *Timer) {
	t.Helper()
	left, right := &recordingSim{}, &recordingSim{}
	view := newRecordingView()
	timer := NewTimer(newFakeClock())
	gm := NewGameManager(ResolvedSimulations(left, right), timer, view, time.Millisecond)
	return gm, left, right, view, timer
}

func laneBySide(lanes []LaneState, side domain.Side) LaneState {
	for _, l := range lanes {
		if l.Side == side {
			return l
		}
	}
	return LaneState{}
}

func TestGameTicksUnevenLanes(t *testing.T) {
	ctx := context.Background()
	gm, left, right, view, timer := newTestGame(t)

	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{
		trajectory(1, 2, 3),
		trajectory(4, 5, 6, 7, 8),
	}))
	require.NoError(t, gm.PlayBoth(ctx))
	assert.True(t, timer.Started())

	for i := 0; i < 5; i++ {
		gm.Tick()
	}

	lanes := gm.Lanes()
	l, r := laneBySide(lanes, domain.SideLeft), laneBySide(lanes, domain.SideRight)
	assert.Equal(t, 3, l.Time)
	assert.Equal(t, 3, l.MaxTimeReached)
	assert.Equal(t, domain.PlayStatePlaying, l.PlayState)
	assert.Equal(t, 5, r.Time)
	assert.Equal(t, 5, r.MaxTimeReached)

	assert.Equal(t, []domain.Action{1, 2, 3}, left.Steps())
	assert.Equal(t, []domain.Action{4, 5, 6, 7, 8}, right.Steps())
	assert.Equal(t, [2]int{3, 3}, view.Lane(domain.SideLeft))
	assert.Equal(t, [2]int{5, 5}, view.Lane(domain.SideRight))

	steps, err := gm.MaxSteps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, steps)
}

func TestGamePausedLaneDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	gm, left, _, _, timer := newTestGame(t)
	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{trajectory(1, 2), trajectory(3)}))

	gm.Tick()

	assert.Empty(t, left.Steps())
	assert.False(t, timer.Started())
	assert.Equal(t, 0, laneBySide(gm.Lanes(), domain.SideLeft).Time)
}

func TestGameRestartKeepsHighWaterMark(t *testing.T) {
	ctx := context.Background()
	gm, left, _, _, _ := newTestGame(t)
	start := trajectory(1, 2, 3)
	start.StartState.AgentX = 1
	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{start, trajectory(9)}))

	require.NoError(t, gm.Play(ctx, domain.SideLeft))
	gm.Tick()
	gm.Tick()
	left.SetState(domain.SimState{AgentX: 2})

	require.NoError(t, gm.Restart(ctx, domain.SideLeft))

	l := laneBySide(gm.Lanes(), domain.SideLeft)
	assert.Equal(t, 0, l.Time)
	assert.Equal(t, 2, l.MaxTimeReached)
	assert.Equal(t, domain.PlayStatePaused, l.PlayState)
	assert.Equal(t, 1, left.State().AgentX)

	require.NoError(t, gm.Play(ctx, domain.SideLeft))
	gm.Tick()
	l = laneBySide(gm.Lanes(), domain.SideLeft)
	assert.Equal(t, 1, l.Time)
	assert.Equal(t, 2, l.MaxTimeReached)
}

func TestGamePauseStopsPlayback(t *testing.T) {
	ctx := context.Background()
	gm, _, right, _, _ := newTestGame(t)
	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{trajectory(1), trajectory(1, 2, 3)}))

	require.NoError(t, gm.Play(ctx, domain.SideRight))
	gm.Tick()
	require.NoError(t, gm.Pause(ctx, domain.SideRight))
	gm.Tick()

	assert.Len(t, right.Steps(), 1)
	assert.Equal(t, domain.PlayStatePaused, laneBySide(gm.Lanes(), domain.SideRight).PlayState)
}

func TestGameSetTrajectoriesResetsLanes(t *testing.T) {
	ctx := context.Background()
	gm, left, _, _, _ := newTestGame(t)
	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{trajectory(1, 2), trajectory(1, 2)}))
	require.NoError(t, gm.PlayBoth(ctx))
	gm.Tick()

	next := trajectory(5)
	next.StartState.AgentY = 2
	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{next, trajectory(5)}))

	for _, l := range gm.Lanes() {
		assert.Equal(t, 0, l.Time)
		assert.Equal(t, 0, l.MaxTimeReached)
		assert.Equal(t, domain.PlayStatePaused, l.PlayState)
		assert.Equal(t, 1, l.Length)
	}
	assert.Equal(t, 2, left.State().AgentY)
	assert.GreaterOrEqual(t, left.Renders(), 3)
}

func TestGameTickBeforeResolutionIsNoop(t *testing.T) {
	factory := &blockingFactory{release: make(chan struct{})}
	sims := ConstructSimulations(context.Background(), factory, nil)
	gm := NewGameManager(sims, NewTimer(newFakeClock()), nil, time.Millisecond)

	gm.Tick()
	assert.Nil(t, gm.Lanes())

	close(factory.release)
	_, err := sims.Wait(context.Background())
	require.NoError(t, err)

	gm.Tick()
	assert.Len(t, gm.Lanes(), 2)
}

func TestGameControlWaitsForSimulations(t *testing.T) {
	factory := &blockingFactory{release: make(chan struct{})}
	gm := NewGameManager(ConstructSimulations(context.Background(), factory, nil), NewTimer(newFakeClock()), nil, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- gm.Play(context.Background(), domain.SideLeft)
	}()

	select {
	case err := <-done:
		t.Fatalf("play returned before simulations resolved: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(factory.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("play did not complete after simulations resolved")
	}
	assert.Equal(t, domain.PlayStatePlaying, laneBySide(gm.Lanes(), domain.SideLeft).PlayState)
}

func TestGameConstructionFailure(t *testing.T) {
	boom := errors.New("no gpu")
	factory := &blockingFactory{release: make(chan struct{}), err: boom}
	close(factory.release)
	gm := NewGameManager(ConstructSimulations(context.Background(), factory, nil), NewTimer(newFakeClock()), nil, time.Millisecond)

	err := gm.Play(context.Background(), domain.SideLeft)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLanesUnavailable)
	assert.ErrorIs(t, err, boom)

	gm.Tick()
	assert.Nil(t, gm.Lanes())
}

func TestGameRunTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gm, left, _, _, _ := newTestGame(t)
	require.NoError(t, gm.SetTrajectories(ctx, [2]*domain.Trajectory{trajectory(1, 2, 3), trajectory(1)}))
	require.NoError(t, gm.Play(ctx, domain.SideLeft))

	done := make(chan struct{})
	go func() {
		gm.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(left.Steps()) == 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
