package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// Timing of one auto test round.
type Timing struct {
	Run   time.Duration
	Pause time.Duration
}

// DefaultTiming matches the stock mechanism: 5 s per direction, 1 s coast.
var DefaultTiming = Timing{
	Run:   5 * time.Second,
	Pause: time.Second,
}

// NewDefinition creates the auto test FSM definition. One round is
// forward, pause, reverse, pause; the guard decides whether the next phase
// runs or the machine falls back to idle.
func NewDefinition(actions Actions, timing Timing) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateIdle,
			librefsm.WithOnEnter(actions.EnterIdle),
		).

		// Running parent state (for the shared abort)
		State(StateRunning).
		State(StateForward,
			librefsm.WithParent(StateRunning),
			librefsm.WithTimeout(timing.Run, EvForwardTimeout),
			librefsm.WithOnEnter(actions.EnterForward),
		).
		State(StateForwardPause,
			librefsm.WithParent(StateRunning),
			librefsm.WithTimeout(timing.Pause, EvForwardPauseTimeout),
			librefsm.WithOnEnter(actions.EnterPause),
		).
		State(StateReverse,
			librefsm.WithParent(StateRunning),
			librefsm.WithTimeout(timing.Run, EvReverseTimeout),
			librefsm.WithOnEnter(actions.EnterReverse),
		).
		State(StateReversePause,
			librefsm.WithParent(StateRunning),
			librefsm.WithTimeout(timing.Pause, EvReversePauseTimeout),
			librefsm.WithOnEnter(actions.EnterPause),
		).

		// === Transitions ===

		Transition(StateIdle, EvStart, StateForward,
			librefsm.WithGuard(actions.CanRunForward),
		).

		Transition(StateForward, EvForwardTimeout, StateForwardPause).
		Transition(StateForwardPause, EvForwardPauseTimeout, StateReverse,
			librefsm.WithGuard(actions.CanRunReverse),
		).
		Transition(StateForwardPause, EvForwardPauseTimeout, StateIdle).

		Transition(StateReverse, EvReverseTimeout, StateReversePause).
		Transition(StateReversePause, EvReversePauseTimeout, StateForward,
			librefsm.WithGuard(actions.CanRunForward),
		).
		Transition(StateReversePause, EvReversePauseTimeout, StateIdle).

		// Abort from any running phase leaves the drive as it is
		Transition(StateRunning, EvAbort, StateIdle).

		Initial(StateIdle)
}
