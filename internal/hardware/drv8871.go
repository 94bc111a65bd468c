package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"litterbox-service/internal/logger"
)

type PWMConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Chip      int           `yaml:"chip"`
	In1       int           `yaml:"in1"`
	In2       int           `yaml:"in2"`
	Period    time.Duration `yaml:"period"`
	SysfsRoot string        `yaml:"sysfs_root"`
}

type bridgeMode int

const (
	modeCoast bridgeMode = iota
	modeBrake
	modeForward
	modeReverse
)

// DRV8871 drives the H-bridge through two sysfs PWM channels on IN1/IN2.
// Forward and reverse use slow decay: one input held high, the other
// modulated, so the off phase brakes instead of freewheeling.
type DRV8871 struct {
	in1    *pwmChannel
	in2    *pwmChannel
	mode   bridgeMode
	speed  int
	logger *logger.Logger
}

func NewDRV8871(cfg PWMConfig, l *logger.Logger) (*DRV8871, error) {
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = PWMSysfsRoot
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPWMPeriod
	}

	in1, err := openPWM(cfg.SysfsRoot, cfg.Chip, cfg.In1, cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("IN1: %w", err)
	}
	in2, err := openPWM(cfg.SysfsRoot, cfg.Chip, cfg.In2, cfg.Period)
	if err != nil {
		in1.close()
		return nil, fmt.Errorf("IN2: %w", err)
	}
	l.Infof("DRV8871 on pwmchip%d channels %d/%d, period %v", cfg.Chip, cfg.In1, cfg.In2, cfg.Period)

	return &DRV8871{in1: in1, in2: in2, logger: l}, nil
}

func (d *DRV8871) SetSpeed(duty int) error {
	d.speed = clampPercent(duty)
	return d.apply()
}

func (d *DRV8871) Speed() int {
	return d.speed
}

func (d *DRV8871) ForwardBrake() error {
	d.mode = modeForward
	return d.apply()
}

func (d *DRV8871) ReverseBrake() error {
	d.mode = modeReverse
	return d.apply()
}

func (d *DRV8871) Brake() error {
	d.mode = modeBrake
	return d.apply()
}

func (d *DRV8871) Coast() error {
	d.mode = modeCoast
	return d.apply()
}

func (d *DRV8871) apply() error {
	var in1, in2 int
	switch d.mode {
	case modeCoast:
		in1, in2 = 0, 0
	case modeBrake:
		in1, in2 = 100, 100
	case modeForward:
		in1, in2 = 100, 100-d.speed
	case modeReverse:
		in1, in2 = 100-d.speed, 100
	}
	d.logger.Debugf("IN1 %d%% IN2 %d%%", in1, in2)
	if err := d.in1.setDuty(in1); err != nil {
		return err
	}
	return d.in2.setDuty(in2)
}

// Close coasts the motor and disables both channels.
func (d *DRV8871) Close() error {
	err1 := d.in1.close()
	err2 := d.in2.close()
	if err1 != nil {
		return err1
	}
	return err2
}

type pwmChannel struct {
	dir      string
	periodNs int64
}

func openPWM(root string, chip, channel int, period time.Duration) (*pwmChannel, error) {
	chipDir := filepath.Join(root, fmt.Sprintf("pwmchip%d", chip))
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		export := filepath.Join(chipDir, "export")
		if err := os.WriteFile(export, []byte(strconv.Itoa(channel)), 0o644); err != nil {
			return nil, fmt.Errorf("failed to export PWM %d: %w", channel, err)
		}
		// The channel directory shows up asynchronously after export
		if err := waitForDir(dir, 20, 10*time.Millisecond); err != nil {
			return nil, fmt.Errorf("failed to export PWM %d: %w", channel, err)
		}
	}

	p := &pwmChannel{dir: dir, periodNs: period.Nanoseconds()}
	// duty_cycle must not exceed period, so clear it before changing period
	if err := p.write("duty_cycle", "0"); err != nil {
		return nil, err
	}
	if err := p.write("period", strconv.FormatInt(p.periodNs, 10)); err != nil {
		return nil, err
	}
	if err := p.write("enable", "1"); err != nil {
		return nil, err
	}
	return p, nil
}

func waitForDir(dir string, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if _, err := os.Stat(dir); err == nil {
			return nil
		}
		time.Sleep(delay)
	}
	return fmt.Errorf("%s did not appear", dir)
}

func (p *pwmChannel) setDuty(percent int) error {
	ns := p.periodNs * int64(clampPercent(percent)) / 100
	return p.write("duty_cycle", strconv.FormatInt(ns, 10))
}

func (p *pwmChannel) close() error {
	if err := p.setDuty(0); err != nil {
		return err
	}
	return p.write("enable", "0")
}

func (p *pwmChannel) write(attr, value string) error {
	path := filepath.Join(p.dir, attr)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", path, err)
	}
	return nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
