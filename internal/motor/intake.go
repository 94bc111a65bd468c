package motor

import (
	"context"
	"sync/atomic"
)

// Intake collects commands and events from producers for the control loop.
// Commands share one overwrite slot. Events accumulate in a bitset until
// the loop takes them. Producers never block.
type Intake struct {
	command atomic.Uint32
	events  atomic.Uint32
	wake    chan struct{}
}

func NewIntake() *Intake {
	return &Intake{wake: make(chan struct{}, 1)}
}

// RequestDrive replaces any command not yet taken by the loop.
func (in *Intake) RequestDrive(target DriveState) {
	in.command.Store(uint32(target))
	in.notify()
}

// Signal adds events to the pending set.
func (in *Intake) Signal(events Event) {
	in.events.Or(uint32(events))
	in.notify()
}

// Take empties both registers and returns what they held.
func (in *Intake) Take() (DriveState, Event) {
	return DriveState(in.command.Swap(0)), Event(in.events.Swap(0))
}

// Defer puts cmd back for the next tick unless a newer command arrived.
func (in *Intake) Defer(cmd DriveState) {
	if cmd == DriveIdle {
		return
	}
	in.command.CompareAndSwap(0, uint32(cmd))
}

func (in *Intake) Pending() bool {
	return in.command.Load() != 0 || in.events.Load() != 0
}

// Wait blocks until a producer posted something or ctx ends.
func (in *Intake) Wait(ctx context.Context) error {
	if in.Pending() {
		return nil
	}
	select {
	case <-in.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *Intake) notify() {
	select {
	case in.wake <- struct{}{}:
	default:
	}
}
