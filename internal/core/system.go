package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"litterbox-service/internal/console"
	"litterbox-service/internal/hardware"
	"litterbox-service/internal/logger"
	"litterbox-service/internal/messaging"
	"litterbox-service/internal/types"
)

// Fault codes reported to the fault set
const (
	FaultLoadCell = 1
)

const (
	CruiseSpeedSetting   = "litterbox.cruise-speed"
	consoleReopenBackoff = 2 * time.Second
	motorStartTimeout    = time.Second
)

// Config holds the parts of the service configuration the system acts on
// directly.
type Config struct {
	AutoTestOnStart bool
	Weight          hardware.HX711Config
	Version         string
}

// Deps are the collaborators the system drives. LoadCell, Telemetry,
// OpenSwitches and OpenConsole may be nil.
type Deps struct {
	Motor     Motor
	AutoTest  AutoTest
	Redis     MessagingClient
	Telemetry Telemetry
	LoadCell  LoadCell

	// OpenSwitches requests the limit switch lines, reporting edges to
	// onEdge. A nil closer means no switches are configured.
	OpenSwitches func(onEdge func(button int)) (io.Closer, error)
	// OpenConsole opens the operator console transport. It is reopened
	// whenever a session ends.
	OpenConsole func() (io.ReadWriteCloser, error)
}

type LitterboxSystem struct {
	cfg    Config
	deps   Deps
	logger *logger.Logger

	console  *console.Console
	switches io.Closer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	faultShown bool
	started    bool
}

func NewLitterboxSystem(cfg Config, deps Deps, l *logger.Logger) *LitterboxSystem {
	s := &LitterboxSystem{
		cfg:    cfg,
		deps:   deps,
		logger: l,
	}
	s.console = console.New(s, cfg.Version, l.WithTag("Console"))
	return s
}

// Start wires the command sources and runs the workers until Shutdown.
func (s *LitterboxSystem) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("system already started")
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Infof("Starting litterbox system %s", s.cfg.Version)
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.deps.Redis.SetCallbacks(messaging.Callbacks{
		MotorCallback:    s.handleMotorCommand,
		ActionCallback:   s.handleActionCommand,
		AutoTestCallback: s.handleAutoTestCommand,
		SettingsCallback: s.handleSettingsUpdate,
	})
	if err := s.deps.Redis.Connect(); err != nil {
		s.cancel()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.loadSettings()

	if err := s.deps.AutoTest.Start(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("failed to start auto test machine: %w", err)
	}

	s.spawn("motor", func(ctx context.Context) {
		if err := s.deps.Motor.Run(ctx); err != nil {
			s.logger.Errorf("Motor control loop: %v", err)
		}
	})
	s.spawn("publisher", s.publishLoop)
	s.waitForMotor()

	if s.deps.OpenSwitches != nil {
		sw, err := s.deps.OpenSwitches(s.handleSwitch)
		if err != nil {
			s.Shutdown()
			return fmt.Errorf("failed to open limit switches: %w", err)
		}
		s.switches = sw
	}

	if s.deps.Telemetry != nil {
		s.deps.Telemetry.SetCommandHandler(s.handleRemoteCommand)
		if err := s.deps.Telemetry.Connect(); err != nil {
			s.logger.Warnf("MQTT connect failed, continuing without telemetry: %v", err)
		}
	}

	if s.deps.LoadCell != nil {
		s.spawn("weight", s.weightLoop)
	}
	if s.deps.OpenConsole != nil {
		s.spawn("console", s.consoleLoop)
	}

	if err := s.deps.Redis.StartListening(); err != nil {
		s.Shutdown()
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	if s.cfg.AutoTestOnStart {
		s.logger.Infof("Running auto test on start")
		if err := s.startAutoTest(); err != nil {
			s.logger.Warnf("Auto test on start: %v", err)
		}
	}

	s.logger.Infof("System started successfully")
	return nil
}

func (s *LitterboxSystem) spawn(name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
		s.logger.Debugf("%s worker stopped", name)
	}()
}

// waitForMotor gives the control loop a moment to come up so commands
// issued during startup are not rejected as uninitialized.
func (s *LitterboxSystem) waitForMotor() {
	deadline := time.Now().Add(motorStartTimeout)
	for !s.deps.Motor.Running() {
		if time.Now().After(deadline) {
			s.logger.Warnf("Motor control loop not running after %v", motorStartTimeout)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Shutdown stops the workers, coasts the motor and releases hardware.
func (s *LitterboxSystem) Shutdown() {
	s.logger.Infof("Shutting down litterbox system")
	if s.cancel != nil {
		s.cancel()
	}
	s.deps.AutoTest.Abort()
	s.wg.Wait()

	if s.switches != nil {
		if err := s.switches.Close(); err != nil {
			s.logger.Warnf("Failed to close switches: %v", err)
		}
	}
	if s.deps.LoadCell != nil {
		if err := s.deps.LoadCell.Close(); err != nil {
			s.logger.Warnf("Failed to close load cell: %v", err)
		}
	}
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.Close()
	}
	if err := s.deps.Redis.Close(); err != nil {
		s.logger.Warnf("Failed to close Redis: %v", err)
	}
}

// Console returns the operator shell, for serving extra sessions.
func (s *LitterboxSystem) Console() *console.Console {
	return s.console
}

func (s *LitterboxSystem) Status() types.MotorStatus {
	status := s.deps.Motor.Status()
	status.AutoTest = s.deps.AutoTest.Running()
	return status
}

// console.Operator

func (s *LitterboxSystem) Forward() error          { return s.deps.Motor.Forward() }
func (s *LitterboxSystem) Reverse() error          { return s.deps.Motor.Reverse() }
func (s *LitterboxSystem) Brake() error            { return s.deps.Motor.Brake() }
func (s *LitterboxSystem) Coast() error            { return s.deps.Motor.Coast() }
func (s *LitterboxSystem) SpeedUp() error          { return s.deps.Motor.SpeedUp() }
func (s *LitterboxSystem) SpeedDown() error        { return s.deps.Motor.SpeedDown() }
func (s *LitterboxSystem) StartCleaning() error    { return s.deps.Motor.StartCleaning() }
func (s *LitterboxSystem) StartHoming() error      { return s.deps.Motor.StartHoming() }
func (s *LitterboxSystem) StopAction() error       { return s.deps.Motor.StopAction() }
func (s *LitterboxSystem) AbortAutoTest()          { s.deps.AutoTest.Abort() }
func (s *LitterboxSystem) SetCruiseSpeed(duty int) { s.deps.Motor.SetCruiseSpeed(duty) }
