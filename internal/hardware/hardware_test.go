package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"litterbox-service/internal/logger"
)

func TestDecodeHX711(t *testing.T) {
	tests := []struct {
		name    string
		raw     uint32
		want    int64
		wantErr bool
	}{
		{"zero", 0x000001, 0, false},
		{"positive", 0x000123<<1 | 1, 0x123, false},
		{"max positive", 0x7fffff<<1 | 1, 0x7fffff, false},
		{"minus one", 0xffffff<<1 | 1, -1, false},
		{"min negative", 0x800000<<1 | 1, -0x800000, false},
		{"tail low", 0x000123 << 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeHX711(tt.raw, hx711GainA128)
			if tt.wantErr {
				if !errors.Is(err, ErrReadFailed) {
					t.Fatalf("err = %v, want ErrReadFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeHX711(%#x) = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("decodeHX711(%#x) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHX711Grams(t *testing.T) {
	cfg := HX711Config{Offset: 1000, Scale: 40}
	if got := cfg.Grams(5000); got != 100 {
		t.Errorf("Grams(5000) = %v, want 100", got)
	}
	if got := (HX711Config{}).Grams(5000); got != 0 {
		t.Errorf("Grams without scale = %v, want 0", got)
	}
}

func fakePWMRoot(t *testing.T, channels ...int) string {
	t.Helper()
	root := t.TempDir()
	for _, ch := range channels {
		dir := filepath.Join(root, "pwmchip0", "pwm"+strconv.Itoa(ch))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readAttr(t *testing.T, root string, ch int, attr string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "pwmchip0", "pwm"+strconv.Itoa(ch), attr))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestDRV8871Modes(t *testing.T) {
	root := fakePWMRoot(t, 0, 1)
	d, err := NewDRV8871(PWMConfig{
		Chip: 0, In1: 0, In2: 1,
		Period:    50 * time.Microsecond,
		SysfsRoot: root,
	}, logger.NewLogger(nil, logger.LogLevelError))
	if err != nil {
		t.Fatalf("NewDRV8871() = %v", err)
	}

	if got := readAttr(t, root, 0, "period"); got != "50000" {
		t.Errorf("period = %q, want 50000", got)
	}
	if got := readAttr(t, root, 1, "enable"); got != "1" {
		t.Errorf("enable = %q, want 1", got)
	}

	tests := []struct {
		name     string
		apply    func() error
		in1, in2 string
	}{
		{"forward", d.ForwardBrake, "50000", "30000"},
		{"reverse", d.ReverseBrake, "30000", "50000"},
		{"brake", d.Brake, "50000", "50000"},
		{"coast", d.Coast, "0", "0"},
	}
	if err := d.SetSpeed(40); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		if err := tt.apply(); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := readAttr(t, root, 0, "duty_cycle"); got != tt.in1 {
			t.Errorf("%s: IN1 duty = %s, want %s", tt.name, got, tt.in1)
		}
		if got := readAttr(t, root, 1, "duty_cycle"); got != tt.in2 {
			t.Errorf("%s: IN2 duty = %s, want %s", tt.name, got, tt.in2)
		}
	}

	if err := d.SetSpeed(150); err != nil {
		t.Fatal(err)
	}
	if d.Speed() != 100 {
		t.Errorf("Speed() = %d, want clamped 100", d.Speed())
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if got := readAttr(t, root, 0, "enable"); got != "0" {
		t.Errorf("enable after close = %q, want 0", got)
	}
}

func TestDRV8871ExportTimeout(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pwmchip0"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := NewDRV8871(PWMConfig{In1: 0, In2: 1, SysfsRoot: root},
		logger.NewLogger(nil, logger.LogLevelError))
	if err == nil || !strings.Contains(err.Error(), "export") {
		t.Fatalf("NewDRV8871() = %v, want export error", err)
	}
	b, _ := os.ReadFile(filepath.Join(root, "pwmchip0", "export"))
	if string(b) != "0" {
		t.Errorf("export = %q, want 0", b)
	}
}

func TestNoopStage(t *testing.T) {
	n := NewNoopStage(logger.NewLogger(nil, logger.LogLevelError))
	n.SetSpeed(-5)
	if n.Speed() != 0 {
		t.Errorf("Speed() = %d, want 0", n.Speed())
	}
	n.SetSpeed(60)
	if n.Speed() != 60 {
		t.Errorf("Speed() = %d, want 60", n.Speed())
	}
}
