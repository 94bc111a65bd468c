package core

import (
	"context"

	"litterbox-service/internal/messaging"
	"litterbox-service/internal/types"
)

// MessagingClient defines the Redis operations needed by LitterboxSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	PublishMotorStatus(status types.MotorStatus) error
	PublishWeight(w types.Weight) error
	GetHashField(hash, field string) (string, error)

	ReportFaultPresent(code int, description string) error
	ReportFaultAbsent(code int) error
}

// Motor is the drive and action controller
type Motor interface {
	Run(ctx context.Context) error
	Running() bool

	Forward() error
	Reverse() error
	Brake() error
	Coast() error
	SpeedUp() error
	SpeedDown() error
	SetCruiseSpeed(duty int)

	StartHoming() error
	StartCleaning() error
	StopAction() error
	SignalEdge(button int) error

	Status() types.MotorStatus
	Changes() <-chan struct{}
}

// AutoTest is the forward/reverse endurance cycle
type AutoTest interface {
	Start(ctx context.Context) error
	Run(ctx context.Context) error
	Abort()
	Running() bool
}

// LoadCell reads raw samples from the weight sensor
type LoadCell interface {
	Read(ctx context.Context) (int64, error)
	Reset() error
	Close() error
}

// Telemetry mirrors state to an MQTT broker
type Telemetry interface {
	SetCommandHandler(fn func(payload string) error)
	Connect() error
	Close()
	PublishStatus(status types.MotorStatus) error
	PublishWeight(w types.Weight) error
}
