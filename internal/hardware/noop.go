package hardware

import "litterbox-service/internal/logger"

// NoopStage stands in for the H-bridge when PWM is disabled. It only logs.
type NoopStage struct {
	speed  int
	logger *logger.Logger
}

func NewNoopStage(l *logger.Logger) *NoopStage {
	return &NoopStage{logger: l}
}

func (n *NoopStage) SetSpeed(duty int) error {
	n.speed = clampPercent(duty)
	n.logger.Debugf("speed %d%%", n.speed)
	return nil
}

func (n *NoopStage) Speed() int { return n.speed }

func (n *NoopStage) ForwardBrake() error {
	n.logger.Debugf("forward")
	return nil
}

func (n *NoopStage) ReverseBrake() error {
	n.logger.Debugf("reverse")
	return nil
}

func (n *NoopStage) Brake() error {
	n.logger.Debugf("brake")
	return nil
}

func (n *NoopStage) Coast() error {
	n.logger.Debugf("coast")
	return nil
}

func (n *NoopStage) Close() error { return nil }
