package agent

import "fmt"

// State is a step of the ask state machine.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateTerminal       State = "terminal"
	StateValidating     State = "validating"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// transitions lists the legal moves. Every state except Idle may fail.
var transitions = map[State][]State{
	StateIdle:           {StateAwaitingModel},
	StateAwaitingModel:  {StateExecutingTools, StateTerminal, StateFailed},
	StateExecutingTools: {StateAwaitingModel, StateFailed},
	StateTerminal:       {StateValidating, StateAwaitingModel, StateFailed},
	StateValidating:     {StateDone, StateFailed},
	StateDone:           {StateIdle},
	StateFailed:         {StateIdle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the current state and rejects illegal moves.
type machine struct {
	state State
	trace []State
}

func (m *machine) to(next State) error {
	if !canTransition(m.state, next) {
		return fmt.Errorf("agent: illegal state transition %s -> %s", m.state, next)
	}
	m.state = next
	m.trace = append(m.trace, next)
	return nil
}
