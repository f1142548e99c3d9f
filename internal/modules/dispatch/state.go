package dispatch

import "fmt"

// State is the lifecycle stage of one dispatcher run
type State int

const (
	StateIdle State = iota
	StateLoggingIn
	StateAllocating
	StateDispatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoggingIn:
		return "LoggingIn"
	case StateAllocating:
		return "Allocating"
	case StateDispatching:
		return "Dispatching"
	case StateDone:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// InvalidTransitionError is returned when an operation is called out of order
type InvalidTransitionError struct {
	Operation string
	State     State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Operation, e.State)
}
