// Package domain defines the core domain models for the replay engine.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Side identifies one playback lane.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Sides lists both lanes in lane order.
var Sides = [2]Side{SideLeft, SideRight}

// ErrUnknownSide is returned when a side name is neither left nor right.
var ErrUnknownSide = errors.New("unknown side")

// ParseSide parses a lane name, case-insensitively.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideLeft:
		return SideLeft, nil
	case SideRight:
		return SideRight, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
}

// Index returns the lane slot for the side: 0 for left, 1 for right.
func (s Side) Index() int {
	if s == SideLeft {
		return 0
	}
	return 1
}

// PlayState represents the playback state of a lane.
type PlayState string

const (
	PlayStatePaused  PlayState = "paused"
	PlayStatePlaying PlayState = "playing"
)

// SessionStatus represents the progress of a comparison session.
type SessionStatus string

const (
	SessionStatusAwaitingQuestion SessionStatus = "AWAITING_QUESTION"
	SessionStatusActive           SessionStatus = "ACTIVE"
	SessionStatusComplete         SessionStatus = "COMPLETE"
)

// VisibilityState mirrors the host page visibility.
type VisibilityState string

const (
	VisibilityVisible VisibilityState = "visible"
	VisibilityHidden  VisibilityState = "hidden"
)

// GoodbyeRoute is where the host is sent once a session completes.
const GoodbyeRoute = "/goodbye"

// LaneAction is a playback control applied to one or both lanes.
type LaneAction string

const (
	LaneActionPlay    LaneAction = "play"
	LaneActionPause   LaneAction = "pause"
	LaneActionRestart LaneAction = "restart"
)

// ErrUnknownLaneAction is returned for unrecognised lane actions.
var ErrUnknownLaneAction = errors.New("unknown lane action")

// ParseLaneAction parses a lane action name.
func ParseLaneAction(s string) (LaneAction, error) {
	switch a := LaneAction(strings.ToLower(strings.TrimSpace(s))); a {
	case LaneActionPlay, LaneActionPause, LaneActionRestart:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLaneAction, s)
}

// ParseSides parses "left", "right" or "both". Both expands to left then right.
func ParseSides(s string) ([]Side, error) {
	if strings.EqualFold(strings.TrimSpace(s), "both") {
		return []Side{SideLeft, SideRight}, nil
	}
	side, err := ParseSide(s)
	if err != nil {
		return nil, err
	}
	return []Side{side}, nil
}
