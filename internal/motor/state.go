package motor

import "strings"

// DriveState is the electrical state of the H-bridge. The same values are
// used as command targets; DriveIdle doubles as "no command".
type DriveState uint32

const (
	DriveIdle DriveState = iota
	DriveForward
	DriveReverse
	DriveForwardStarting
	DriveReverseStarting
	DriveBrake
	DriveCoast
)

func (s DriveState) String() string {
	switch s {
	case DriveIdle:
		return "Idle"
	case DriveForward:
		return "Forward"
	case DriveReverse:
		return "Reverse"
	case DriveForwardStarting:
		return "Forward_Starting"
	case DriveReverseStarting:
		return "Reverse_Starting"
	case DriveBrake:
		return "Brake"
	case DriveCoast:
		return "Coast"
	}
	return "Unknown"
}

// opposite returns the steady state of the other direction.
func (s DriveState) opposite() DriveState {
	switch s {
	case DriveForward, DriveForwardStarting:
		return DriveReverse
	case DriveReverse, DriveReverseStarting:
		return DriveForward
	}
	return DriveIdle
}

func (s DriveState) starting() DriveState {
	switch s {
	case DriveForward:
		return DriveForwardStarting
	case DriveReverse:
		return DriveReverseStarting
	}
	return s
}

func (s DriveState) steady() DriveState {
	switch s {
	case DriveForwardStarting:
		return DriveForward
	case DriveReverseStarting:
		return DriveReverse
	}
	return s
}

// ActionState is the position of the homing/cleaning sequencer.
type ActionState uint32

const (
	ActionIdle ActionState = iota
	ActionStopping
	ActionHomingReverse
	ActionHomingForward
	ActionCleaningForward
	ActionCleaningReverse
	ActionCleaningForward2
)

func (s ActionState) String() string {
	switch s {
	case ActionIdle:
		return "Idle"
	case ActionStopping:
		return "Stop"
	case ActionHomingReverse:
		return "Homing_Reverse"
	case ActionHomingForward:
		return "Homing_Forward"
	case ActionCleaningForward:
		return "Cleaning_Forward"
	case ActionCleaningReverse:
		return "Cleaning_Reverse"
	case ActionCleaningForward2:
		return "Cleaning_Forward_2"
	}
	return "Unknown"
}

// Event is a set of asynchronous notifications accumulated between ticks.
type Event uint32

const (
	EventButton0 Event = 1 << iota
	EventButton1
	EventButton2
	EventButton3
	EventStartHoming
	EventStartCleaning
	EventStopAction
)

const (
	HomingLimits   = EventButton0 | EventButton2
	CleaningLimits = EventButton1 | EventButton3
)

var eventNames = []struct {
	ev   Event
	name string
}{
	{EventButton0, "button0"},
	{EventButton1, "button1"},
	{EventButton2, "button2"},
	{EventButton3, "button3"},
	{EventStartHoming, "start-homing"},
	{EventStartCleaning, "start-cleaning"},
	{EventStopAction, "stop-action"},
}

func (e Event) Has(flags Event) bool {
	return e&flags != 0
}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var names []string
	for _, n := range eventNames {
		if e&n.ev != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}
