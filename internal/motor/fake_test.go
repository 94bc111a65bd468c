package motor

import (
	"fmt"
	"sync"
	"time"

	"litterbox-service/internal/logger"
)

type fakeStage struct {
	mu     sync.Mutex
	speed  int
	calls  []string
	failOn map[string]error
}

func newFakeStage() *fakeStage {
	return &fakeStage{failOn: make(map[string]error)}
}

func (f *fakeStage) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.failOn[name]
}

func (f *fakeStage) SetSpeed(duty int) error {
	if err := f.record(fmt.Sprintf("speed:%d", duty)); err != nil {
		return err
	}
	f.mu.Lock()
	f.speed = duty
	f.mu.Unlock()
	return nil
}

func (f *fakeStage) Speed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speed
}

func (f *fakeStage) ForwardBrake() error { return f.record("forward-brake") }
func (f *fakeStage) ReverseBrake() error { return f.record("reverse-brake") }
func (f *fakeStage) Brake() error        { return f.record("brake") }
func (f *fakeStage) Coast() error        { return f.record("coast") }

func (f *fakeStage) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStage) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// testConfig uses round numbers: ramp step 10, dwell 3 ticks.
func testConfig() Config {
	return Config{
		Period:          100 * time.Millisecond,
		RampTime:        time.Second,
		Dwell:           300 * time.Millisecond,
		CruiseSpeed:     30,
		SpeedStep:       5,
		HomingForward:   500 * time.Millisecond,
		RetryReverse:    400 * time.Millisecond,
		SettleReverse:   600 * time.Millisecond,
		LevelForward:    200 * time.Millisecond,
		CleaningRetries: 1,
	}
}

func testLogger() *logger.Logger {
	return logger.NewLogger(nil, logger.LogLevelError)
}
