package relay

import (
	"fmt"

	"github.com/google/uuid"
)

// State is the lifecycle state of a relay session.
type State int

const (
	StateIdle State = iota
	StateRangeValidated
	StateSourceBound
	StateStreaming
	StateCompleted
	StateAborted
	StateFailed
)

var stateNames = [...]string{
	"idle", "range_validated", "source_bound", "streaming",
	"completed", "aborted", "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:           {StateRangeValidated, StateFailed},
	StateRangeValidated: {StateSourceBound, StateFailed},
	StateSourceBound:    {StateStreaming, StateFailed},
	StateStreaming:      {StateCompleted, StateAborted, StateFailed},
}

// Session is one in-flight relay. It is owned by a single request goroutine.
type Session struct {
	ID    string
	state State
}

func newSession() *Session {
	return &Session{ID: uuid.NewString(), state: StateIdle}
}

func (s *Session) State() State { return s.state }

func (s *Session) transition(to State) error {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("relay session %s: illegal transition %s -> %s", s.ID, s.state, to)
}
