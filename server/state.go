package server

import "fmt"

// State is the lifecycle phase of a Server.
type State int32

const (
	// Stopped is both the initial and the terminal state.
	Stopped State = iota
	// Starting means Run is binding the listener.
	Starting
	// Running means the loop is ticking.
	Running
	// ShuttingDown means the loop has stopped and connections are being
	// released.
	ShuttingDown
)

var stateNames = map[State]string{
	Stopped:      "stopped",
	Starting:     "starting",
	Running:      "running",
	ShuttingDown: "shutting_down",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int32(s))
}
