package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerStartStop(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)

	assert.False(t, timer.Started())
	assert.False(t, timer.Stopped())

	start := clock.Now()
	timer.Start()
	clock.Advance(2 * time.Second)
	timer.Start() // already started; keeps the first time

	got, ok := timer.StartTime()
	assert.True(t, ok)
	assert.Equal(t, start, got)

	stop := clock.Now()
	timer.Stop()
	clock.Advance(time.Second)
	timer.Stop()

	got, ok = timer.StopTime()
	assert.True(t, ok)
	assert.Equal(t, stop, got)
	assert.True(t, timer.Stopped())
}

func TestTimerStopBeforeStartIsNoop(t *testing.T) {
	timer := NewTimer(newFakeClock())

	timer.Stop()

	assert.False(t, timer.Stopped())
	_, ok := timer.StopTime()
	assert.False(t, ok)
}

func TestTimerReset(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)
	timer.Start()
	timer.Stop()

	timer.Reset()

	assert.False(t, timer.Started())
	assert.False(t, timer.Stopped())

	clock.Advance(time.Minute)
	timer.Start()
	got, _ := timer.StartTime()
	assert.Equal(t, clock.Now(), got)
}
