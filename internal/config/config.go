package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"litterbox-service/internal/autotest"
	"litterbox-service/internal/console"
	"litterbox-service/internal/hardware"
	"litterbox-service/internal/motor"
	"litterbox-service/internal/telemetry"
)

// Config is the service configuration file.
type Config struct {
	Motor    motor.Config     `yaml:"motor"`
	AutoTest autotest.Config  `yaml:"autotest"`
	Hardware HardwareConfig   `yaml:"hardware"`
	Redis    RedisConfig      `yaml:"redis"`
	MQTT     telemetry.Config `yaml:"mqtt"`
	Console  console.Config   `yaml:"console"`
	LogLevel string           `yaml:"log_level"`
}

type HardwareConfig struct {
	Switches hardware.SwitchesConfig `yaml:"switches"`
	PWM      hardware.PWMConfig      `yaml:"pwm"`
	HX711    hardware.HX711Config    `yaml:"hx711"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns the stock mechanism settings.
func Default() Config {
	return Config{
		Motor:    motor.DefaultConfig(),
		AutoTest: autotest.DefaultConfig(),
		Hardware: HardwareConfig{
			Switches: hardware.SwitchesConfig{
				Chip:     hardware.DefaultGPIOChip,
				Lines:    append([]int(nil), hardware.DefaultSwitchLines...),
				Debounce: hardware.DefaultSwitchDebounce,
			},
			PWM: hardware.PWMConfig{
				Enabled:   true,
				Chip:      0,
				In1:       0,
				In2:       1,
				Period:    hardware.DefaultPWMPeriod,
				SysfsRoot: hardware.PWMSysfsRoot,
			},
			HX711: hardware.HX711Config{
				Chip:     hardware.DefaultGPIOChip,
				Data:     hardware.DefaultHX711Lines.Data,
				Clock:    hardware.DefaultHX711Lines.Clock,
				Interval: hardware.HX711ReadInterval,
				Backoff:  hardware.HX711ErrorBackoff,
				Scale:    1,
			},
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		MQTT: telemetry.Config{
			Port:  1883,
			Topic: "litterbox",
		},
		Console: console.Config{
			Baud: 115200,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	m := c.Motor
	switch {
	case m.Period <= 0:
		return errors.New("motor.period must be positive")
	case m.RampTime < 0 || m.Dwell < 0 || m.SwitchTimeout < 0:
		return errors.New("motor durations must not be negative")
	case m.CruiseSpeed < motor.MinDuty || m.CruiseSpeed > motor.MaxDuty:
		return fmt.Errorf("motor.cruise_speed %d out of range 0-100", m.CruiseSpeed)
	case m.SpeedStep <= 0:
		return errors.New("motor.speed_step must be positive")
	case m.CleaningRetries < 0:
		return errors.New("motor.cleaning_retries must not be negative")
	case m.Dwell < m.Period:
		return fmt.Errorf("motor.dwell %v shorter than one period %v", m.Dwell, m.Period)
	}

	if c.AutoTest.Repetitions < 0 {
		return errors.New("autotest.repetitions must not be negative")
	}
	if c.AutoTest.Run <= 0 || c.AutoTest.Pause <= 0 {
		return errors.New("autotest.run and autotest.pause must be positive")
	}

	if n := len(c.Hardware.Switches.Lines); n != 0 && n != 4 {
		return fmt.Errorf("hardware.switches.lines needs 4 entries, got %d", n)
	}
	if c.Hardware.PWM.Enabled && c.Hardware.PWM.In1 == c.Hardware.PWM.In2 {
		return errors.New("hardware.pwm.in1 and in2 must differ")
	}
	if c.Hardware.HX711.Enabled && c.Hardware.HX711.Interval <= 0 {
		return errors.New("hardware.hx711.interval must be positive")
	}
	if c.Redis.Host == "" {
		return errors.New("redis.host missing")
	}
	return nil
}
