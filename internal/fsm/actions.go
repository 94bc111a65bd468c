package fsm

import "github.com/librescoot/librefsm"

// Actions defines the interface for auto test state machine actions.
// autotest.Runner implements it.
type Actions interface {
	// State entry actions
	EnterIdle(c *librefsm.Context) error
	EnterForward(c *librefsm.Context) error
	EnterPause(c *librefsm.Context) error
	EnterReverse(c *librefsm.Context) error

	// Guards checked before every forward and reverse phase
	CanRunForward(c *librefsm.Context) bool // not aborted and rounds left
	CanRunReverse(c *librefsm.Context) bool // not aborted
}
