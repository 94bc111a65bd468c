package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"litterbox-service/internal/autotest"
	"litterbox-service/internal/config"
	"litterbox-service/internal/console"
	"litterbox-service/internal/core"
	"litterbox-service/internal/hardware"
	"litterbox-service/internal/logger"
	"litterbox-service/internal/messaging"
	"litterbox-service/internal/motor"
	"litterbox-service/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/litterbox/config.yaml", "Path to the YAML configuration file")
	logLevel := flag.String("log", "", "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG), overrides the config file")
	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		stdLogger.Printf("Config %s not found, using defaults", *configPath)
		cfg = config.Default()
	} else if err != nil {
		stdLogger.Fatalf("Failed to load config: %v", err)
	}

	levelName := cfg.LogLevel
	if *logLevel != "" {
		levelName = *logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		stdLogger.Fatalf("Invalid log level: %v", err)
	}
	l := logger.NewLogger(stdLogger, level)

	l.Infof("Starting litterbox service %s...", version)

	var stage motor.PowerStage
	if cfg.Hardware.PWM.Enabled {
		drv, err := hardware.NewDRV8871(cfg.Hardware.PWM, l.WithTag("DRV8871"))
		if err != nil {
			l.Fatalf("Failed to initialize motor driver: %v", err)
		}
		defer drv.Close()
		stage = drv
	} else {
		l.Warnf("PWM disabled, motor commands are simulated")
		stage = hardware.NewNoopStage(l.WithTag("Motor"))
	}

	ctrl := motor.NewController(cfg.Motor, stage, l.WithTag("Motor"))
	if cfg.Motor.Nice != 0 {
		ctrl.SetThreadSetup(hardware.RaisePriority(cfg.Motor.Nice))
	}

	runner, err := autotest.NewRunner(cfg.AutoTest, ctrl, l.WithTag("AutoTest"))
	if err != nil {
		l.Fatalf("Failed to build auto test: %v", err)
	}
	ctrl.SetAutoTest(runner)

	redis := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l.WithTag("Redis"), messaging.Callbacks{})

	mqtt, err := telemetry.New(cfg.MQTT, telemetry.Handlers{}, l.WithTag("MQTT"))
	if err != nil {
		l.Fatalf("Failed to configure MQTT: %v", err)
	}

	deps := core.Deps{
		Motor:     ctrl,
		AutoTest:  runner,
		Redis:     redis,
		Telemetry: mqtt,
		OpenSwitches: func(onEdge func(int)) (io.Closer, error) {
			sw, err := hardware.NewSwitches(cfg.Hardware.Switches, onEdge, l.WithTag("Switches"))
			if err != nil || sw == nil {
				return nil, err
			}
			return sw, nil
		},
	}

	if cfg.Hardware.HX711.Enabled {
		cell, err := hardware.NewHX711(cfg.Hardware.HX711, l.WithTag("HX711"))
		if err != nil {
			l.Fatalf("Failed to initialize load cell: %v", err)
		}
		deps.LoadCell = cell
	}

	if cfg.Console.Port != "" {
		deps.OpenConsole = func() (io.ReadWriteCloser, error) {
			return console.OpenSerial(cfg.Console)
		}
	}

	system := core.NewLitterboxSystem(core.Config{
		AutoTestOnStart: cfg.AutoTest.OnStart,
		Weight:          cfg.Hardware.HX711,
		Version:         version,
	}, deps, l.WithTag("Litterbox"))

	if err := system.Start(context.Background()); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	l.Infof("Shutdown complete")
}
