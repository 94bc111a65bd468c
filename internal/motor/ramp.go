package motor

import "time"

const (
	MinDuty = 0
	MaxDuty = 100
)

// Ramp moves the duty cycle toward a target by a fixed step per tick.
type Ramp struct {
	step int
}

// NewRamp sizes the step so a full 0..100 sweep takes rampTime.
func NewRamp(period, rampTime time.Duration) Ramp {
	if rampTime <= 0 {
		return Ramp{step: MaxDuty}
	}
	step := int(MaxDuty * period / rampTime)
	if step < 1 {
		step = 1
	}
	return Ramp{step: step}
}

func (r Ramp) Step() int {
	return r.step
}

// Next returns the duty for the next tick and whether the target is reached.
func (r Ramp) Next(current, target int) (int, bool) {
	target = clampDuty(target)
	switch {
	case current-r.step > target:
		return current - r.step, false
	case current+r.step < target:
		return current + r.step, false
	}
	return target, true
}

func clampDuty(d int) int {
	if d < MinDuty {
		return MinDuty
	}
	if d > MaxDuty {
		return MaxDuty
	}
	return d
}
