package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"litterbox-service/internal/autotest"
	"litterbox-service/internal/messaging"
)

// handleMotorCommand handles direct drive requests. Drive changes take
// over from a running auto test; speed changes do not.
func (s *LitterboxSystem) handleMotorCommand(cmd string) error {
	s.logger.Debugf("Handling motor command: %s", cmd)

	var err error
	switch cmd {
	case "forward":
		err = s.deps.Motor.Forward()
	case "reverse":
		err = s.deps.Motor.Reverse()
	case "brake":
		err = s.deps.Motor.Brake()
	case "coast":
		err = s.deps.Motor.Coast()
	case "speed-up":
		return s.deps.Motor.SpeedUp()
	case "speed-down":
		return s.deps.Motor.SpeedDown()
	default:
		return fmt.Errorf("invalid motor command: %s", cmd)
	}
	s.deps.AutoTest.Abort()
	return err
}

func (s *LitterboxSystem) handleActionCommand(cmd string) error {
	s.logger.Debugf("Handling action command: %s", cmd)
	switch cmd {
	case "home":
		return s.deps.Motor.StartHoming()
	case "clean":
		return s.deps.Motor.StartCleaning()
	case "stop":
		return s.deps.Motor.StopAction()
	default:
		return fmt.Errorf("invalid action command: %s", cmd)
	}
}

func (s *LitterboxSystem) handleAutoTestCommand(cmd string) error {
	s.logger.Debugf("Handling auto test command: %s", cmd)
	switch cmd {
	case "start":
		return s.startAutoTest()
	case "stop":
		s.deps.AutoTest.Abort()
		return nil
	default:
		return fmt.Errorf("invalid auto test command: %s", cmd)
	}
}

// handleRemoteCommand routes "group:command" payloads from MQTT.
func (s *LitterboxSystem) handleRemoteCommand(payload string) error {
	group, cmd, ok := strings.Cut(payload, ":")
	if !ok {
		return fmt.Errorf("malformed command %q", payload)
	}
	switch group {
	case "motor":
		return s.handleMotorCommand(cmd)
	case "action":
		return s.handleActionCommand(cmd)
	case "autotest":
		return s.handleAutoTestCommand(cmd)
	default:
		return fmt.Errorf("unknown command group %q", group)
	}
}

func (s *LitterboxSystem) handleSettingsUpdate(key string) error {
	if key != CruiseSpeedSetting {
		return nil
	}
	s.loadSettings()
	return nil
}

// loadSettings applies persisted settings. Missing or invalid values
// leave the current configuration in place.
func (s *LitterboxSystem) loadSettings() {
	value, err := s.deps.Redis.GetHashField(messaging.SettingsHash, CruiseSpeedSetting)
	if err != nil {
		s.logger.Warnf("Failed to read %s: %v", CruiseSpeedSetting, err)
		return
	}
	if value == "" {
		return
	}
	duty, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || duty < 0 || duty > 100 {
		s.logger.Warnf("Ignoring invalid %s %q", CruiseSpeedSetting, value)
		return
	}
	s.logger.Infof("Setting cruise speed to %d%% from settings", duty)
	s.deps.Motor.SetCruiseSpeed(duty)
}

func (s *LitterboxSystem) handleSwitch(button int) {
	if err := s.deps.Motor.SignalEdge(button); err != nil {
		s.logger.Warnf("Switch %d: %v", button, err)
	}
}

func (s *LitterboxSystem) startAutoTest() error {
	if s.ctx == nil || s.ctx.Err() != nil {
		return fmt.Errorf("auto test: system not running")
	}
	if s.deps.AutoTest.Running() {
		return autotest.ErrRunning
	}
	s.spawn("autotest", func(ctx context.Context) {
		if err := s.deps.AutoTest.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warnf("Auto test: %v", err)
		}
		s.publishStatus()
	})
	return nil
}
