package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// WireState is the start state layout sent by the backend.
type WireState struct {
	Grid      json.RawMessage `json:"grid"`
	GridShape [2]int          `json:"grid_shape"`
	AgentPos  [2]int          `json:"agent_pos"`
	ExitPos   [2]int          `json:"exit_pos"`
}

// SimState is the state layout the simulation engine consumes.
type SimState struct {
	Grid       []int32 `json:"grid"`
	GridWidth  int     `json:"grid_width"`
	GridHeight int     `json:"grid_height"`
	AgentX     int     `json:"agent_x"`
	AgentY     int     `json:"agent_y"`
	ExitX      int     `json:"exit_x"`
	ExitY      int     `json:"exit_y"`
}

// Clone returns a deep copy of the state.
func (s SimState) Clone() SimState {
	out := s
	if s.Grid != nil {
		out.Grid = make([]int32, len(s.Grid))
		copy(out.Grid, s.Grid)
	}
	return out
}

// PrepareState decodes a wire state into the simulation layout. The grid may
// be a flat array or an object keyed by flat index.
func PrepareState(w WireState) (SimState, error) {
	grid, err := decodeGrid(w.Grid)
	if err != nil {
		return SimState{}, err
	}
	return SimState{
		Grid:       grid,
		GridWidth:  w.GridShape[0],
		GridHeight: w.GridShape[1],
		AgentX:     w.AgentPos[0],
		AgentY:     w.AgentPos[1],
		ExitX:      w.ExitPos[0],
		ExitY:      w.ExitPos[1],
	}, nil
}

func decodeGrid(raw json.RawMessage) ([]int32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []int32{}, nil
	}

	switch raw[0] {
	case '[':
		var values []int32
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("decode grid: %w", err)
		}
		return values, nil
	case '{':
		var keyed map[string]int32
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, fmt.Errorf("decode grid: %w", err)
		}
		grid := make([]int32, len(keyed))
		for key, value := range keyed {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("decode grid: invalid index %q", key)
			}
			if idx < 0 || idx >= len(grid) {
				return nil, fmt.Errorf("decode grid: index %d out of range [0,%d)", idx, len(grid))
			}
			grid[idx] = value
		}
		return grid, nil
	}
	return nil, fmt.Errorf("decode grid: unexpected value %.20s", string(raw))
}
