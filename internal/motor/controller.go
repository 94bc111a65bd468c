package motor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"litterbox-service/internal/logger"
	"litterbox-service/internal/types"
)

var (
	ErrNotInitialized = errors.New("motor control loop not running")
	ErrBusy           = errors.New("motor is busy")
	ErrAlreadyRunning = errors.New("motor control loop already running")
	ErrInvalidTarget  = errors.New("invalid drive target")
	ErrInvalidButton  = errors.New("invalid button")
)

// Aborter stops a running auto test.
type Aborter interface {
	Abort()
}

// Controller runs the fixed-period control loop and exposes the operator
// API. All methods except Run are safe to call from any goroutine.
type Controller struct {
	cfg     Config
	machine *Machine
	intake  *Intake
	stage   PowerStage
	logger  *logger.Logger

	cruise  atomic.Int32
	drive   atomic.Uint32
	action  atomic.Uint32
	output  atomic.Int32
	running atomic.Bool
	changes chan struct{}

	autoTest    Aborter
	threadSetup func() error
}

func NewController(cfg Config, stage PowerStage, l *logger.Logger) *Controller {
	c := &Controller{
		cfg:     cfg,
		machine: NewMachine(cfg, stage, l),
		intake:  NewIntake(),
		stage:   stage,
		logger:  l,
		changes: make(chan struct{}, 1),
	}
	c.cruise.Store(int32(clampDuty(cfg.CruiseSpeed)))
	return c
}

// SetAutoTest registers the auto test so actions can abort it. Call before Run.
func (c *Controller) SetAutoTest(a Aborter) {
	c.autoTest = a
}

// SetThreadSetup registers fn to run once on the loop's locked OS thread,
// typically to raise its scheduling priority. Call before Run.
func (c *Controller) SetThreadSetup(fn func() error) {
	c.threadSetup = fn
}

// Run executes control ticks until ctx ends. The motor is coasted on exit.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	if c.threadSetup != nil {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := c.threadSetup(); err != nil {
			c.logger.Warnf("control thread setup: %v", err)
		}
	}

	ticker := time.NewTicker(c.cfg.Period)
	defer ticker.Stop()
	defer c.release()

	c.logger.Infof("control loop started, period %v, cruise %d%%", c.cfg.Period, c.cruise.Load())

	for {
		if c.machine.Idle() && !c.intake.Pending() {
			if err := c.intake.Wait(ctx); err != nil {
				return nil
			}
			ticker.Reset(c.cfg.Period)
		} else {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		c.tick()
	}
}

func (c *Controller) tick() {
	cmd, events := c.intake.Take()
	if cmd != DriveIdle || events != 0 {
		c.logger.Debugf("tick: command %s, events %s", cmd, events)
	}
	if keep := c.machine.Step(cmd, events, int(c.cruise.Load())); keep != DriveIdle {
		c.intake.Defer(keep)
	}
	c.publish()
}

func (c *Controller) publish() {
	drive := uint32(c.machine.Drive())
	action := uint32(c.machine.Action())
	output := int32(c.stage.Speed())

	changed := c.drive.Swap(drive) != drive
	changed = c.action.Swap(action) != action || changed
	changed = c.output.Swap(output) != output || changed
	if changed {
		c.notify()
	}
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) release() {
	if err := c.stage.SetSpeed(0); err != nil {
		c.logger.Errorf("release: set speed: %v", err)
	}
	if err := c.stage.Coast(); err != nil {
		c.logger.Errorf("release: coast: %v", err)
	}
	c.logger.Infof("control loop stopped")
}

// RequestDrive posts a raw drive command. A newer command replaces an
// older one the loop has not taken yet.
func (c *Controller) RequestDrive(target DriveState) error {
	if !c.running.Load() {
		return ErrNotInitialized
	}
	switch target {
	case DriveForward, DriveReverse, DriveBrake, DriveCoast,
		DriveForwardStarting, DriveReverseStarting:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	c.intake.RequestDrive(target)
	return nil
}

func (c *Controller) Forward() error { return c.RequestDrive(DriveForward) }
func (c *Controller) Reverse() error { return c.RequestDrive(DriveReverse) }
func (c *Controller) Brake() error   { return c.RequestDrive(DriveBrake) }
func (c *Controller) Coast() error   { return c.RequestDrive(DriveCoast) }

func (c *Controller) SpeedUp() error   { return c.adjustSpeed(c.cfg.SpeedStep) }
func (c *Controller) SpeedDown() error { return c.adjustSpeed(-c.cfg.SpeedStep) }

func (c *Controller) adjustSpeed(delta int) error {
	if !c.running.Load() {
		return ErrNotInitialized
	}
	for {
		old := c.cruise.Load()
		next := int32(clampDuty(int(old) + delta))
		if c.cruise.CompareAndSwap(old, next) {
			c.logger.Infof("cruise speed %d%%", next)
			break
		}
	}
	c.reramp()
	return nil
}

// SetCruiseSpeed replaces the cruise duty. It works before Run so a stored
// setting can be applied at startup.
func (c *Controller) SetCruiseSpeed(duty int) {
	c.cruise.Store(int32(clampDuty(duty)))
	if c.running.Load() {
		c.reramp()
	}
}

// reramp asks a steady drive to ramp to the new cruise speed.
func (c *Controller) reramp() {
	switch c.DriveState() {
	case DriveForward:
		c.intake.RequestDrive(DriveForwardStarting)
	case DriveReverse:
		c.intake.RequestDrive(DriveReverseStarting)
	}
}

func (c *Controller) StartHoming() error {
	return c.startAction(EventStartHoming)
}

func (c *Controller) StartCleaning() error {
	return c.startAction(EventStartCleaning)
}

func (c *Controller) startAction(ev Event) error {
	if !c.running.Load() {
		return ErrNotInitialized
	}
	if c.IsBusy() {
		return fmt.Errorf("%w: %s", ErrBusy, c.ActionState())
	}
	c.abortAutoTest()
	c.intake.Signal(ev)
	return nil
}

func (c *Controller) StopAction() error {
	if !c.running.Load() {
		return ErrNotInitialized
	}
	c.abortAutoTest()
	c.intake.Signal(EventStopAction)
	return nil
}

// SignalEdge reports a falling edge on switch 0..3.
func (c *Controller) SignalEdge(button int) error {
	if button < 0 || button > 3 {
		return fmt.Errorf("%w: %d", ErrInvalidButton, button)
	}
	if !c.running.Load() {
		return ErrNotInitialized
	}
	c.intake.Signal(EventButton0 << button)
	return nil
}

func (c *Controller) abortAutoTest() {
	if c.autoTest != nil {
		c.autoTest.Abort()
	}
}

func (c *Controller) DriveState() DriveState   { return DriveState(c.drive.Load()) }
func (c *Controller) ActionState() ActionState { return ActionState(c.action.Load()) }
func (c *Controller) IsBusy() bool             { return c.ActionState() != ActionIdle }

// Speed returns the cruise target, not the momentary output.
func (c *Controller) Speed() int    { return int(c.cruise.Load()) }
func (c *Controller) Output() int   { return int(c.output.Load()) }
func (c *Controller) Running() bool { return c.running.Load() }

func (c *Controller) Status() types.MotorStatus {
	return types.MotorStatus{
		Drive:  c.DriveState().String(),
		Action: c.ActionState().String(),
		Busy:   c.IsBusy(),
		Speed:  c.Speed(),
		Output: c.Output(),
	}
}

// Changes delivers a token after each tick that altered the published state.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}
