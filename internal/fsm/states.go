package fsm

import "github.com/librescoot/librefsm"

// Auto test states
const (
	StateIdle librefsm.StateID = "idle"

	// Running parent state and its phases
	StateRunning      librefsm.StateID = "running"
	StateForward      librefsm.StateID = "forward"
	StateForwardPause librefsm.StateID = "forward-pause"
	StateReverse      librefsm.StateID = "reverse"
	StateReversePause librefsm.StateID = "reverse-pause"
)

// Auto test events
const (
	EvStart librefsm.EventID = "start"
	EvAbort librefsm.EventID = "abort"

	// Timer events
	EvForwardTimeout      librefsm.EventID = "forward-timeout"
	EvForwardPauseTimeout librefsm.EventID = "forward-pause-timeout"
	EvReverseTimeout      librefsm.EventID = "reverse-timeout"
	EvReversePauseTimeout librefsm.EventID = "reverse-pause-timeout"
)
