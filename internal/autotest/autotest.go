package autotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/librescoot/librefsm"

	"litterbox-service/internal/fsm"
	"litterbox-service/internal/logger"
)

var (
	ErrRunning    = errors.New("auto test already running")
	ErrNotStarted = errors.New("auto test machine not started")
)

// Driver is the part of the motor the auto test commands.
type Driver interface {
	Forward() error
	Reverse() error
	Coast() error
}

type Config struct {
	Repetitions int           `yaml:"repetitions"`
	Run         time.Duration `yaml:"run"`
	Pause       time.Duration `yaml:"pause"`
	OnStart     bool          `yaml:"on_start"`
}

func DefaultConfig() Config {
	return Config{
		Repetitions: 10,
		Run:         fsm.DefaultTiming.Run,
		Pause:       fsm.DefaultTiming.Pause,
	}
}

// Runner cycles the motor forward and reverse for a number of rounds.
// It implements fsm.Actions.
type Runner struct {
	cfg     Config
	driver  Driver
	logger  *logger.Logger
	machine *librefsm.Machine

	started atomic.Bool
	running atomic.Bool
	aborted atomic.Bool

	mu    sync.Mutex
	round int
	done  chan struct{}
}

func NewRunner(cfg Config, driver Driver, l *logger.Logger) (*Runner, error) {
	r := &Runner{
		cfg:    cfg,
		driver: driver,
		logger: l,
	}

	def := fsm.NewDefinition(r, fsm.Timing{Run: cfg.Run, Pause: cfg.Pause})
	machine, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("build auto test machine: %w", err)
	}
	r.machine = machine

	r.machine.OnStateChange(func(from, to librefsm.StateID) {
		r.logger.Debugf("State transition: %s -> %s", from, to)
	})
	return r, nil
}

// Start runs the state machine until ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.machine.Start(ctx); err != nil {
		return err
	}
	r.started.Store(true)
	r.logger.Infof("auto test machine started")
	return nil
}

// Run executes the configured rounds and blocks until they are done, the
// test is aborted, or ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.Load() {
		return ErrNotStarted
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer r.running.Store(false)

	done := make(chan struct{})
	r.mu.Lock()
	r.round = 0
	r.done = done
	r.mu.Unlock()
	r.aborted.Store(false)

	r.logger.Infof("starting %d rounds (%v run, %v pause)", r.cfg.Repetitions, r.cfg.Run, r.cfg.Pause)
	if err := r.machine.SendSync(librefsm.Event{ID: fsm.EvStart}); err != nil {
		return fmt.Errorf("start auto test: %w", err)
	}
	if r.machine.CurrentState() == fsm.StateIdle {
		r.release()
		r.logger.Infof("auto test not started")
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		r.Abort()
		return ctx.Err()
	}

	if r.aborted.Load() {
		r.logger.Infof("auto test aborted in round %d", r.Round())
	} else {
		r.logger.Infof("auto test finished after %d rounds", r.Round())
	}
	return nil
}

// Abort stops a running test before its next phase. The drive is left
// in whatever state it is in.
func (r *Runner) Abort() {
	r.aborted.Store(true)
	if r.running.Load() {
		r.machine.Send(librefsm.Event{ID: fsm.EvAbort})
	}
}

func (r *Runner) Running() bool {
	return r.running.Load()
}

func (r *Runner) Round() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

func (r *Runner) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}

// === State Entry Actions ===

func (r *Runner) EnterIdle(c *librefsm.Context) error {
	r.release()
	return nil
}

func (r *Runner) EnterForward(c *librefsm.Context) error {
	r.mu.Lock()
	r.round++
	round := r.round
	r.mu.Unlock()

	r.logger.Infof("round %d/%d: forward", round, r.cfg.Repetitions)
	if err := r.driver.Forward(); err != nil {
		r.logger.Warnf("forward: %v", err)
	}
	return nil
}

func (r *Runner) EnterReverse(c *librefsm.Context) error {
	r.logger.Infof("round %d/%d: reverse", r.Round(), r.cfg.Repetitions)
	if err := r.driver.Reverse(); err != nil {
		r.logger.Warnf("reverse: %v", err)
	}
	return nil
}

func (r *Runner) EnterPause(c *librefsm.Context) error {
	if err := r.driver.Coast(); err != nil {
		r.logger.Warnf("coast: %v", err)
	}
	return nil
}

// === Guards ===

func (r *Runner) CanRunForward(c *librefsm.Context) bool {
	return !r.aborted.Load() && r.Round() < r.cfg.Repetitions
}

func (r *Runner) CanRunReverse(c *librefsm.Context) bool {
	return !r.aborted.Load()
}
