package motor

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type harness struct {
	t       *testing.T
	stage   *fakeStage
	m       *Machine
	in      *Intake
	cruise  int
	drives  []DriveState
	actions []ActionState
	last    ActionState
}

func newHarness(t *testing.T, cfg Config) *harness {
	stage := newFakeStage()
	return &harness{
		t:      t,
		stage:  stage,
		m:      NewMachine(cfg, stage, testLogger()),
		in:     NewIntake(),
		cruise: cfg.CruiseSpeed,
	}
}

func (h *harness) tick() {
	cmd, ev := h.in.Take()
	if keep := h.m.Step(cmd, ev, h.cruise); keep != DriveIdle {
		h.in.Defer(keep)
	}
	h.drives = append(h.drives, h.m.Drive())
	if a := h.m.Action(); a != h.last {
		h.actions = append(h.actions, a)
		h.last = a
	}
}

func (h *harness) until(what string, cond func() bool) {
	h.t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		h.tick()
	}
	h.t.Fatalf("never reached %s (drive %s, action %s)", what, h.m.Drive(), h.m.Action())
}

func (h *harness) untilDrive(s DriveState) {
	h.t.Helper()
	h.until("drive "+s.String(), func() bool { return h.m.Drive() == s })
}

func (h *harness) untilAction(s ActionState) {
	h.t.Helper()
	h.until("action "+s.String(), func() bool { return h.m.Action() == s })
}

// count returns how many recorded ticks from index from ended in s.
func (h *harness) count(from int, s DriveState) int {
	n := 0
	for _, d := range h.drives[from:] {
		if d == s {
			n++
		}
	}
	return n
}

func (h *harness) forwardAtCruise() {
	h.t.Helper()
	h.in.RequestDrive(DriveForward)
	h.untilDrive(DriveForward)
	h.stage.reset()
	h.drives = nil
}

func TestStartFromIdleRamps(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.RequestDrive(DriveForward)
	for i := 0; i < 4; i++ {
		h.tick()
	}

	wantDrives := []DriveState{DriveForwardStarting, DriveForwardStarting, DriveForwardStarting, DriveForward}
	if !reflect.DeepEqual(h.drives, wantDrives) {
		t.Errorf("drives = %v, want %v", h.drives, wantDrives)
	}
	wantCalls := []string{"speed:0", "forward-brake", "speed:10", "speed:20", "speed:30"}
	if got := h.stage.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func TestIdleAbsorbsStopCommands(t *testing.T) {
	h := newHarness(t, testConfig())
	for _, cmd := range []DriveState{DriveBrake, DriveCoast, DriveForwardStarting, DriveReverseStarting} {
		h.in.RequestDrive(cmd)
		h.tick()
		if h.m.Drive() != DriveIdle {
			t.Errorf("%s moved idle drive to %s", cmd, h.m.Drive())
		}
		if h.in.Pending() {
			t.Errorf("%s was kept pending", cmd)
		}
	}
	if calls := h.stage.Calls(); len(calls) != 0 {
		t.Errorf("unexpected power stage calls %v", calls)
	}
}

func TestReversalCoastsFirst(t *testing.T) {
	h := newHarness(t, testConfig())
	h.forwardAtCruise()

	h.in.RequestDrive(DriveReverse)
	for i := 0; i < 5; i++ {
		h.tick()
	}

	wantDrives := []DriveState{DriveCoast, DriveCoast, DriveCoast, DriveIdle, DriveReverseStarting}
	if !reflect.DeepEqual(h.drives, wantDrives) {
		t.Errorf("drives = %v, want %v", h.drives, wantDrives)
	}
	wantCalls := []string{"coast", "coast", "speed:0", "reverse-brake"}
	if got := h.stage.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func TestReversalWhileStarting(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.RequestDrive(DriveForward)
	h.tick()

	h.in.RequestDrive(DriveReverse)
	h.tick()
	if h.m.Drive() != DriveCoast {
		t.Fatalf("drive = %s, want Coast", h.m.Drive())
	}
	if cmd, _ := h.in.Take(); cmd != DriveReverse {
		t.Errorf("reverse was not deferred, slot holds %s", cmd)
	}
}

func TestNewestCommandWinsAfterDwell(t *testing.T) {
	h := newHarness(t, testConfig())
	h.forwardAtCruise()

	h.in.RequestDrive(DriveReverse)
	h.tick()
	h.in.RequestDrive(DriveForward)
	h.untilDrive(DriveIdle)
	h.tick()

	if h.m.Drive() != DriveForwardStarting {
		t.Errorf("drive = %s, want Forward_Starting", h.m.Drive())
	}
}

func TestDwellAbsorbsStaleStop(t *testing.T) {
	h := newHarness(t, testConfig())
	h.forwardAtCruise()

	h.in.RequestDrive(DriveBrake)
	h.tick()
	if h.m.Drive() != DriveBrake {
		t.Fatalf("drive = %s, want Brake", h.m.Drive())
	}

	h.in.RequestDrive(DriveCoast)
	h.untilDrive(DriveIdle)
	if !h.in.Pending() {
		t.Fatal("coast request dropped during dwell")
	}
	h.tick()

	if h.m.Drive() != DriveIdle || h.in.Pending() {
		t.Errorf("stale coast not absorbed: drive %s, pending %v", h.m.Drive(), h.in.Pending())
	}
	wantCalls := []string{"brake", "coast"}
	if got := h.stage.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func TestDwellLength(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)
	h.forwardAtCruise()

	h.in.RequestDrive(DriveCoast)
	h.untilDrive(DriveIdle)

	if got, want := h.count(0, DriveCoast), cfg.Ticks(cfg.Dwell); got != want {
		t.Errorf("coast lasted %d ticks, want %d", got, want)
	}
}

func TestSpeedChangeWhileRunning(t *testing.T) {
	h := newHarness(t, testConfig())
	h.forwardAtCruise()

	h.in.RequestDrive(DriveReverseStarting)
	h.tick()
	if h.m.Drive() != DriveForward {
		t.Fatalf("reverse speed change applied to forward drive: %s", h.m.Drive())
	}

	h.cruise = 50
	h.in.RequestDrive(DriveForwardStarting)
	h.tick()
	if h.m.Drive() != DriveForwardStarting {
		t.Fatalf("drive = %s, want Forward_Starting", h.m.Drive())
	}
	h.untilDrive(DriveForward)

	wantCalls := []string{"speed:40", "speed:50"}
	if got := h.stage.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func TestBrakeWhileStarting(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.RequestDrive(DriveReverse)
	h.tick()
	h.stage.reset()

	h.in.RequestDrive(DriveBrake)
	h.tick()
	if h.m.Drive() != DriveBrake {
		t.Errorf("drive = %s, want Brake", h.m.Drive())
	}
	if got := h.stage.Calls(); !reflect.DeepEqual(got, []string{"brake"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestPowerStageErrorDoesNotBlockTransition(t *testing.T) {
	h := newHarness(t, testConfig())
	h.stage.failOn["forward-brake"] = errors.New("write failed")

	h.in.RequestDrive(DriveForward)
	h.tick()
	if h.m.Drive() != DriveForwardStarting {
		t.Errorf("drive = %s, want Forward_Starting", h.m.Drive())
	}
}

func TestHomingSequence(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)

	h.in.Signal(EventStartHoming)
	h.tick()
	if h.m.Action() != ActionHomingReverse || h.m.Drive() != DriveReverseStarting {
		t.Fatalf("after start: action %s, drive %s", h.m.Action(), h.m.Drive())
	}
	h.untilDrive(DriveReverse)

	h.in.Signal(EventButton1)
	h.tick()
	if h.m.Action() != ActionHomingReverse {
		t.Fatalf("cleaning limit advanced homing to %s", h.m.Action())
	}

	h.in.Signal(EventButton2)
	h.tick()
	if h.m.Action() != ActionHomingForward || h.m.Drive() != DriveCoast {
		t.Fatalf("after limit: action %s, drive %s", h.m.Action(), h.m.Drive())
	}
	from := len(h.drives)
	h.untilAction(ActionIdle)

	want := []ActionState{ActionHomingReverse, ActionHomingForward, ActionStopping, ActionIdle}
	if !reflect.DeepEqual(h.actions, want) {
		t.Errorf("actions = %v, want %v", h.actions, want)
	}
	if got, want := h.count(from, DriveForward), cfg.Ticks(cfg.HomingForward); got != want {
		t.Errorf("homing forward ran %d ticks, want %d", got, want)
	}
	if h.m.Drive() != DriveIdle {
		t.Errorf("drive = %s after homing", h.m.Drive())
	}
}

func TestCleaningSequenceWithRetry(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)

	h.in.Signal(EventStartCleaning)
	h.tick()
	if h.m.Action() != ActionCleaningForward {
		t.Fatalf("action = %s, want Cleaning_Forward", h.m.Action())
	}
	h.untilDrive(DriveForward)
	h.in.Signal(EventButton3)
	h.tick()
	if h.m.Action() != ActionCleaningReverse {
		t.Fatalf("action = %s, want Cleaning_Reverse", h.m.Action())
	}

	from := len(h.drives)
	h.untilAction(ActionCleaningForward)
	if got, want := h.count(from, DriveReverse), cfg.Ticks(cfg.RetryReverse); got != want {
		t.Errorf("retry reverse ran %d ticks, want %d", got, want)
	}
	if h.m.retries != 1 {
		t.Errorf("retries = %d, want 1", h.m.retries)
	}

	h.untilDrive(DriveForward)
	h.in.Signal(EventButton1)
	h.tick()
	from = len(h.drives)
	h.untilAction(ActionCleaningForward2)
	if got, want := h.count(from, DriveReverse), cfg.Ticks(cfg.SettleReverse); got != want {
		t.Errorf("settle reverse ran %d ticks, want %d", got, want)
	}
	if h.m.retries != 0 {
		t.Errorf("retries = %d after settle, want 0", h.m.retries)
	}

	from = len(h.drives)
	h.untilAction(ActionIdle)
	if got, want := h.count(from, DriveForward), cfg.Ticks(cfg.LevelForward); got != want {
		t.Errorf("level forward ran %d ticks, want %d", got, want)
	}

	want := []ActionState{
		ActionCleaningForward, ActionCleaningReverse,
		ActionCleaningForward, ActionCleaningReverse,
		ActionCleaningForward2, ActionStopping, ActionIdle,
	}
	if !reflect.DeepEqual(h.actions, want) {
		t.Errorf("actions = %v, want %v", h.actions, want)
	}
}

func TestStopPreemptsAction(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.Signal(EventStartCleaning)
	h.untilDrive(DriveForward)

	h.in.Signal(EventStopAction | EventButton1)
	h.tick()
	if h.m.Action() != ActionStopping || h.m.Drive() != DriveCoast {
		t.Fatalf("after stop: action %s, drive %s", h.m.Action(), h.m.Drive())
	}
	h.untilAction(ActionIdle)

	want := []ActionState{ActionCleaningForward, ActionStopping, ActionIdle}
	if !reflect.DeepEqual(h.actions, want) {
		t.Errorf("actions = %v, want %v", h.actions, want)
	}
}

func TestStopWhileIdle(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.Signal(EventStopAction)
	h.tick()
	if h.m.Action() != ActionStopping {
		t.Fatalf("action = %s, want Stop", h.m.Action())
	}
	h.tick()
	if h.m.Action() != ActionIdle || h.m.Drive() != DriveIdle {
		t.Errorf("action %s, drive %s, want both Idle", h.m.Action(), h.m.Drive())
	}
}

func TestCleaningWinsOverHoming(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.Signal(EventStartHoming | EventStartCleaning)
	h.tick()
	if h.m.Action() != ActionCleaningForward {
		t.Errorf("action = %s, want Cleaning_Forward", h.m.Action())
	}
}

func TestStartIgnoredWhileSequencing(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.Signal(EventStartHoming)
	h.tick()
	h.in.Signal(EventStartCleaning)
	h.tick()
	if h.m.Action() != ActionHomingReverse {
		t.Errorf("action = %s, want Homing_Reverse", h.m.Action())
	}
}

func TestSwitchWatchdog(t *testing.T) {
	cfg := testConfig()
	cfg.SwitchTimeout = time.Second
	h := newHarness(t, cfg)

	h.in.Signal(EventStartHoming)
	h.untilDrive(DriveReverse)
	from := len(h.drives) - 1
	h.untilAction(ActionHomingForward)

	if got, want := h.count(from, DriveReverse), cfg.Ticks(cfg.SwitchTimeout); got != want {
		t.Errorf("watchdog fired after %d ticks, want %d", got, want)
	}
}

func TestSwitchWatchdogDisabled(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.Signal(EventStartCleaning)
	for i := 0; i < 200; i++ {
		h.tick()
	}
	if h.m.Action() != ActionCleaningForward || h.m.Drive() != DriveForward {
		t.Errorf("action %s, drive %s, want waiting in Cleaning_Forward", h.m.Action(), h.m.Drive())
	}
}

func TestStateNames(t *testing.T) {
	drives := map[DriveState]string{
		DriveIdle: "Idle", DriveForward: "Forward", DriveReverse: "Reverse",
		DriveForwardStarting: "Forward_Starting", DriveReverseStarting: "Reverse_Starting",
		DriveBrake: "Brake", DriveCoast: "Coast",
	}
	for s, want := range drives {
		if s.String() != want {
			t.Errorf("DriveState(%d) = %q, want %q", s, s.String(), want)
		}
	}
	actions := map[ActionState]string{
		ActionIdle: "Idle", ActionStopping: "Stop",
		ActionHomingReverse: "Homing_Reverse", ActionHomingForward: "Homing_Forward",
		ActionCleaningForward: "Cleaning_Forward", ActionCleaningReverse: "Cleaning_Reverse",
		ActionCleaningForward2: "Cleaning_Forward_2",
	}
	for s, want := range actions {
		if s.String() != want {
			t.Errorf("ActionState(%d) = %q, want %q", s, s.String(), want)
		}
	}
}
