package agent

import "testing"

func TestTransitions(t *testing.T) {
	legal := [][2]State{
		{StateIdle, StateAwaitingModel},
		{StateAwaitingModel, StateExecutingTools},
		{StateExecutingTools, StateAwaitingModel},
		{StateAwaitingModel, StateTerminal},
		{StateTerminal, StateValidating},
		{StateValidating, StateDone},
		{StateValidating, StateFailed},
		{StateDone, StateIdle},
		{StateFailed, StateIdle},
	}
	for _, tr := range legal {
		if !canTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be legal", tr[0], tr[1])
		}
	}

	illegal := [][2]State{
		{StateIdle, StateDone},
		{StateExecutingTools, StateValidating},
		{StateAwaitingModel, StateDone},
		{StateValidating, StateAwaitingModel},
		{StateDone, StateFailed},
	}
	for _, tr := range illegal {
		if canTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestMachine_RejectsIllegalMove(t *testing.T) {
	m := machine{state: StateIdle}
	if err := m.to(StateAwaitingModel); err != nil {
		t.Fatalf("to: %v", err)
	}
	if err := m.to(StateDone); err == nil {
		t.Fatal("expected an error for awaiting_model -> done")
	}
	if m.state != StateAwaitingModel {
		t.Fatalf("state changed on an illegal move: %s", m.state)
	}
}
