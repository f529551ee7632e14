package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Action is one recorded simulation input.
type Action int32

// QuestionID is an opaque question identifier. The backend may issue numeric
// or string ids; the JSON kind is kept so ids go back out the way they came
// in. The zero value is the empty id.
type QuestionID struct {
	value  string
	quoted bool
}

// NumberID returns the id the backend sends as the JSON number n.
func NumberID(n int64) QuestionID {
	return QuestionID{value: strconv.FormatInt(n, 10)}
}

// StringID returns the id the backend sends as the JSON string s.
func StringID(s string) QuestionID {
	return QuestionID{value: s, quoted: true}
}

// String returns the id's text without JSON quoting.
func (id QuestionID) String() string { return id.value }

// IsZero reports whether the id is empty.
func (id QuestionID) IsZero() bool { return id == QuestionID{} }

// MarshalJSON encodes the id with the kind it was decoded with. The zero id
// encodes as null.
func (id QuestionID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.quoted {
		return json.Marshal(id.value)
	}
	return []byte(id.value), nil
}

// UnmarshalJSON accepts a JSON number, string or null.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode question id: %w", err)
	}
	switch t := v.(type) {
	case nil:
		*id = QuestionID{}
	case json.Number:
		*id = QuestionID{value: t.String()}
	case string:
		*id = StringID(t)
	default:
		return fmt.Errorf("decode question id: unsupported value %s", string(data))
	}
	return nil
}

// Question is a comparison question as received from the backend.
type Question struct {
	ID    QuestionID      `json:"id"`
	Trajs []RawTrajectory `json:"trajs"`
}

// RawTrajectory is a trajectory in its wire layout.
type RawTrajectory struct {
	StartState WireState `json:"start_state"`
	Actions    []Action  `json:"actions"`
}

// Trajectory is a start state plus the ordered actions replayed from it.
// It is not modified after construction.
type Trajectory struct {
	StartState SimState
	Actions    []Action
}

// Len returns the number of recorded actions.
func (t *Trajectory) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Actions)
}

// Trajectories decodes both wire trajectories into the simulation layout.
func (q *Question) Trajectories() ([2]*Trajectory, error) {
	var out [2]*Trajectory
	if len(q.Trajs) != 2 {
		return out, fmt.Errorf("question %s: expected 2 trajectories, got %d", q.ID, len(q.Trajs))
	}
	for i, raw := range q.Trajs {
		state, err := PrepareState(raw.StartState)
		if err != nil {
			return out, fmt.Errorf("question %s: %s trajectory: %w", q.ID, Sides[i], err)
		}
		actions := make([]Action, len(raw.Actions))
		copy(actions, raw.Actions)
		out[i] = &Trajectory{StartState: state, Actions: actions}
	}
	return out, nil
}

// FilterOptions narrows which random questions the backend may return.
type FilterOptions struct {
	Env     string   `json:"env"`
	Lengths []int    `json:"lengths"`
	Types   []string `json:"types"`
}

// WithDefaults fills unset fields with the backend defaults.
func (f FilterOptions) WithDefaults() FilterOptions {
	if f.Env == "" {
		f.Env = "miner"
	}
	if f.Lengths == nil {
		f.Lengths = []int{}
	}
	if len(f.Types) == 0 {
		f.Types = []string{"traj", "traj"}
	}
	return f
}

// RandomQuestionRequest is the body of POST /random_question.
type RandomQuestionRequest struct {
	Env        string       `json:"env"`
	Lengths    []int        `json:"lengths"`
	Types      []string     `json:"types"`
	ExcludeIDs []QuestionID `json:"exclude_ids"`
}

// NamedQuestionRequest is the body of POST /named_question.
type NamedQuestionRequest struct {
	Name string `json:"name"`
}

// Answer is one recorded preference judgment.
type Answer struct {
	ID        QuestionID `json:"id"`
	Answer    Side       `json:"answer"`
	StartTime *int64     `json:"startTime"` // epoch milliseconds
	StopTime  *int64     `json:"stopTime"`  // epoch milliseconds
	MaxSteps  []int      `json:"maxSteps,omitempty"`
}
