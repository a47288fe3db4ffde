package coordinator

import (
	"context"

	"github.com/looplab/fsm"
)

// Coordinator states.
const (
	StateIdle       = "idle"
	StateRefreshing = "refreshing"
	StateReady      = "ready"
	StateDegraded   = "degraded"
)

const (
	eventRefresh = "refresh"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

// newStateMachine builds the coordinator lifecycle. onEnter runs after every
// state change; it must not call back into the FSM.
func newStateMachine(onEnter func(from, to string)) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventRefresh, Src: []string{StateIdle, StateReady, StateDegraded}, Dst: StateRefreshing},
			{Name: eventSucceed, Src: []string{StateRefreshing}, Dst: StateReady},
			{Name: eventFail, Src: []string{StateRefreshing}, Dst: StateDegraded},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(e.Src, e.Dst)
			},
		},
	)
}
