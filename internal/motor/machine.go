package motor

import (
	"time"

	"litterbox-service/internal/logger"
)

// PowerStage is the H-bridge driver the drive machine commands.
type PowerStage interface {
	SetSpeed(duty int) error
	Speed() int
	ForwardBrake() error
	ReverseBrake() error
	Brake() error
	Coast() error
}

// Config holds the motion timing. Durations are rounded down to whole
// control periods.
type Config struct {
	Period          time.Duration `yaml:"period"`
	RampTime        time.Duration `yaml:"ramp_time"`
	Dwell           time.Duration `yaml:"dwell"`
	CruiseSpeed     int           `yaml:"cruise_speed"`
	SpeedStep       int           `yaml:"speed_step"`
	HomingForward   time.Duration `yaml:"homing_forward"`
	RetryReverse    time.Duration `yaml:"cleaning_retry_reverse"`
	SettleReverse   time.Duration `yaml:"cleaning_settle_reverse"`
	LevelForward    time.Duration `yaml:"cleaning_level_forward"`
	CleaningRetries int           `yaml:"cleaning_retries"`
	// SwitchTimeout advances a phase waiting for a limit switch after this
	// long with the motor running. Zero waits forever.
	SwitchTimeout time.Duration `yaml:"switch_timeout"`
	// Nice is the scheduling priority of the control thread; 0 leaves it.
	Nice int `yaml:"nice"`
}

func DefaultConfig() Config {
	return Config{
		Period:          100 * time.Millisecond,
		RampTime:        2 * time.Second,
		Dwell:           time.Second,
		CruiseSpeed:     50,
		SpeedStep:       5,
		HomingForward:   5 * time.Second,
		RetryReverse:    5 * time.Second,
		SettleReverse:   15 * time.Second,
		LevelForward:    2 * time.Second,
		CleaningRetries: 1,
		SwitchTimeout:   60 * time.Second,
		Nice:            -10,
	}
}

// Ticks converts d to control periods.
func (c Config) Ticks(d time.Duration) int {
	if c.Period <= 0 {
		return 0
	}
	return int(d / c.Period)
}

type timing struct {
	dwell         int
	homingForward int
	retryReverse  int
	settleReverse int
	levelForward  int
	switchTimeout int
	retries       int
}

// Machine is the drive state machine plus the action sequencer. It is not
// safe for concurrent use; the control loop owns it.
type Machine struct {
	stage  PowerStage
	ramp   Ramp
	timing timing
	logger *logger.Logger

	drive   DriveState
	action  ActionState
	ticks   int
	retries int
}

func NewMachine(cfg Config, stage PowerStage, l *logger.Logger) *Machine {
	return &Machine{
		stage: stage,
		ramp:  NewRamp(cfg.Period, cfg.RampTime),
		timing: timing{
			dwell:         cfg.Ticks(cfg.Dwell),
			homingForward: cfg.Ticks(cfg.HomingForward),
			retryReverse:  cfg.Ticks(cfg.RetryReverse),
			settleReverse: cfg.Ticks(cfg.SettleReverse),
			levelForward:  cfg.Ticks(cfg.LevelForward),
			switchTimeout: cfg.Ticks(cfg.SwitchTimeout),
			retries:       cfg.CleaningRetries,
		},
		logger: l,
	}
}

func (m *Machine) Drive() DriveState   { return m.drive }
func (m *Machine) Action() ActionState { return m.action }
func (m *Machine) Ticks() int          { return m.ticks }

// Idle reports whether nothing is moving and nothing is sequenced.
func (m *Machine) Idle() bool {
	return m.drive == DriveIdle && m.action == ActionIdle
}

// Step runs one control tick with the command and events taken from the
// intake. It returns a command to hand back to the intake, or DriveIdle.
func (m *Machine) Step(cmd DriveState, events Event, cruise int) DriveState {
	m.ticks++
	target := m.sequence(cmd, events)
	return m.apply(target, cruise)
}

func (m *Machine) setAction(s ActionState) {
	if s != m.action {
		m.logger.Infof("action: %s -> %s", m.action, s)
	}
	m.action = s
}

func (m *Machine) setDrive(s DriveState) {
	if s != m.drive {
		m.logger.Infof("drive: %s -> %s", m.drive, s)
	}
	m.drive = s
	m.ticks = 0
}

func (m *Machine) call(name string, fn func() error) {
	if err := fn(); err != nil {
		m.logger.Errorf("power stage %s: %v", name, err)
	}
}
