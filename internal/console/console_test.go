package console

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"litterbox-service/internal/logger"
	"litterbox-service/internal/types"
)

type mockOperator struct {
	calls  []string
	speed  int
	errFor map[string]error
}

func newMockOperator() *mockOperator {
	return &mockOperator{speed: 50, errFor: make(map[string]error)}
}

func (m *mockOperator) call(name string) error {
	m.calls = append(m.calls, name)
	return m.errFor[name]
}

func (m *mockOperator) Forward() error       { return m.call("forward") }
func (m *mockOperator) Reverse() error       { return m.call("reverse") }
func (m *mockOperator) Brake() error         { return m.call("brake") }
func (m *mockOperator) Coast() error         { return m.call("coast") }
func (m *mockOperator) StartCleaning() error { return m.call("clean") }
func (m *mockOperator) StartHoming() error   { return m.call("home") }
func (m *mockOperator) StopAction() error    { return m.call("stop") }
func (m *mockOperator) AbortAutoTest()       { m.call("abort") }

func (m *mockOperator) SpeedUp() error {
	m.speed += 5
	return m.call("speed-up")
}

func (m *mockOperator) SpeedDown() error {
	m.speed -= 5
	return m.call("speed-down")
}

func (m *mockOperator) SetCruiseSpeed(d int) {
	m.speed = d
	m.call("set-speed")
}

func (m *mockOperator) Status() types.MotorStatus {
	return types.MotorStatus{Drive: "Forward", Action: "Cleaning_Forward", Busy: true, Speed: m.speed, Output: 42}
}

type session struct {
	in  io.Reader
	out bytes.Buffer
}

func (s *session) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *session) Write(p []byte) (int, error) { return s.out.Write(p) }

func run(t *testing.T, op Operator, input string) string {
	t.Helper()
	c := New(op, "test", logger.NewLogger(nil, logger.LogLevelError))
	s := &session{in: strings.NewReader(input)}
	if err := c.Serve(s); err != nil {
		t.Fatalf("Serve() = %v", err)
	}
	return s.out.String()
}

func TestMotorCommandsAbortAutoTest(t *testing.T) {
	op := newMockOperator()
	run(t, op, "mf\nmr\nmb\nmc\n")

	want := []string{"forward", "abort", "reverse", "abort", "brake", "abort", "coast", "abort"}
	if !reflect.DeepEqual(op.calls, want) {
		t.Errorf("calls = %v, want %v", op.calls, want)
	}
}

func TestActionCommands(t *testing.T) {
	op := newMockOperator()
	run(t, op, "c\nr\nt\n")

	want := []string{"clean", "home", "stop"}
	if !reflect.DeepEqual(op.calls, want) {
		t.Errorf("calls = %v, want %v", op.calls, want)
	}
}

func TestStatusOutput(t *testing.T) {
	out := run(t, newMockOperator(), "p\n")
	want := "action: Cleaning_Forward\nmotor : Forward\nmotor speed: 50\n"
	if !strings.Contains(out, want) {
		t.Errorf("output %q does not contain %q", out, want)
	}
}

func TestSpeedCommands(t *testing.T) {
	op := newMockOperator()
	out := run(t, op, "+\nm+\n-\n")

	for _, want := range []string{"motor speed: 55", "motor speed: 60"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if op.speed != 55 {
		t.Errorf("speed = %d, want 55", op.speed)
	}
}

func TestErrorsAreReported(t *testing.T) {
	op := newMockOperator()
	op.errFor["clean"] = errors.New("motor is busy: Homing_Reverse")
	out := run(t, op, "c\n")

	if !strings.Contains(out, "error: motor is busy: Homing_Reverse") {
		t.Errorf("output %q lacks the error", out)
	}
}

func TestQuitEndsSession(t *testing.T) {
	op := newMockOperator()
	run(t, op, "q\nmf\n")
	if len(op.calls) != 0 {
		t.Errorf("commands after quit ran: %v", op.calls)
	}
}

func TestHelpAndUnknown(t *testing.T) {
	out := run(t, newMockOperator(), "h\nm?\nx\n")
	for _, want := range []string{"start cleaning", "usage: m[?frbc+-]", `unknown command "x"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestSettings(t *testing.T) {
	op := newMockOperator()
	out := run(t, op, "s cruise-speed 70\ng cruise-speed\ns cruise-speed fast\n")

	if op.speed != 70 {
		t.Errorf("speed = %d, want 70", op.speed)
	}
	if !strings.Contains(out, "cruise-speed = 70") {
		t.Errorf("output %q lacks the setting", out)
	}
	if !strings.Contains(out, `invalid value "fast"`) {
		t.Errorf("output %q lacks the parse error", out)
	}
}

func TestWeightOutputToggle(t *testing.T) {
	c := New(newMockOperator(), "test", logger.NewLogger(nil, logger.LogLevelError))
	var buf bytes.Buffer
	c.out = &buf

	c.WriteWeight(types.Weight{Raw: 100, Grams: 2.5})
	if buf.Len() != 0 {
		t.Fatalf("weight written while output is off: %q", buf.String())
	}

	c.Execute("d")
	buf.Reset()
	c.WriteWeight(types.Weight{Raw: 100, Grams: 2.5})
	if got := buf.String(); got != "weight: 100 (2.5 g)\n" {
		t.Errorf("weight output = %q", got)
	}
}
