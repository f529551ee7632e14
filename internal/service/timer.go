package service

import (
	"sync"
	"time"
)

// Timer is a single-shot stopwatch measuring how long the viewer takes to
// answer. Stop only records a time after Start, and each only records once
// until Reset.
type Timer struct {
	clock Clock

	mu        sync.Mutex
	startTime *time.Time
	stopTime  *time.Time
}

// NewTimer creates a timer. A nil clock means the system clock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timer{clock: clock}
}

// Start records the start time unless already started.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime == nil {
		now := t.clock.Now()
		t.startTime = &now
	}
}

// Stop records the stop time if started and not already stopped.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime != nil && t.stopTime == nil {
		now := t.clock.Now()
		t.stopTime = &now
	}
}

// Started reports whether a start time is recorded.
func (t *Timer) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startTime != nil
}

// Stopped reports whether a stop time is recorded.
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopTime != nil
}

// StartTime returns the recorded start time, if any.
func (t *Timer) StartTime() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime == nil {
		return time.Time{}, false
	}
	return *t.startTime, true
}

// StopTime returns the recorded stop time, if any.
func (t *Timer) StopTime() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopTime == nil {
		return time.Time{}, false
	}
	return *t.stopTime, true
}

// Reset clears both times.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = nil
	t.stopTime = nil
}
