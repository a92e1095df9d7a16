package session

import (
	"fmt"
	"strconv"
)

// State is a phase of a trial.
type State int

const (
	Sleep State = iota
	Wait
	Start
	Running
	Response
	Home
)

var stateNames = [...]string{
	Sleep:    "sleep",
	Wait:     "wait",
	Start:    "start",
	Running:  "running",
	Response: "response",
	Home:     "home",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// ParseState accepts a state name or its number. Numbers outside the known
// range are returned as is so that the controller can reject them.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if s == name {
			return State(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown state %q", s)
	}
	return State(n), nil
}

// Valid reports whether s is a known state.
func (s State) Valid() bool { return s >= Sleep && s <= Home }

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StateError reports a request to enter a state the controller does not
// know. It is not fatal: the controller keeps its current state.
type StateError struct {
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("unknown session state %d", int(e.State))
}
