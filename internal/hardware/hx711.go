package hardware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"litterbox-service/internal/logger"
)

var ErrReadFailed = errors.New("hx711 read failed")

// Extra clock pulses after the 24 data bits select the next conversion:
// 1 = channel A gain 128, 2 = channel B gain 32, 3 = channel A gain 64.
const hx711GainA128 = 1

type HX711Config struct {
	Enabled  bool          `yaml:"enabled"`
	Chip     string        `yaml:"chip"`
	Data     int           `yaml:"data_line"`
	Clock    int           `yaml:"clock_line"`
	Interval time.Duration `yaml:"interval"`
	Backoff  time.Duration `yaml:"backoff"`
	Offset   int64         `yaml:"offset"`
	Scale    float64       `yaml:"scale"`
}

// Grams converts a raw reading using the tare offset and scale.
func (c HX711Config) Grams(raw int64) float64 {
	if c.Scale == 0 {
		return 0
	}
	return float64(raw-c.Offset) / c.Scale
}

// HX711 bit-bangs the load cell ADC. DT going low signals a conversion
// is ready.
type HX711 struct {
	mu     sync.Mutex
	data   *gpiocdev.Line
	clock  *gpiocdev.Line
	ready  chan struct{}
	logger *logger.Logger
}

func NewHX711(cfg HX711Config, l *logger.Logger) (*HX711, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultGPIOChip
	}
	h := &HX711{
		ready:  make(chan struct{}, 1),
		logger: l,
	}

	var err error
	h.clock, err = gpiocdev.RequestLine(cfg.Chip, cfg.Clock,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to request HX711 clock line %d: %w", cfg.Clock, err)
	}

	h.data, err = gpiocdev.RequestLine(cfg.Chip, cfg.Data,
		gpiocdev.AsInput,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithConsumer(Consumer),
		gpiocdev.WithEventHandler(h.handleReady))
	if err != nil {
		h.clock.Close()
		return nil, fmt.Errorf("failed to request HX711 data line %d: %w", cfg.Data, err)
	}

	l.Infof("HX711 on %s: data line %d, clock line %d", cfg.Chip, cfg.Data, cfg.Clock)
	return h, nil
}

func (h *HX711) handleReady(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

// Read waits for the next conversion and returns the signed 24-bit value.
func (h *HX711) Read(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.waitReady(ctx); err != nil {
		return 0, err
	}

	var raw uint32
	for i := 0; i < 24+hx711GainA128; i++ {
		if err := h.pulse(); err != nil {
			return 0, err
		}
		bit, err := h.data.Value()
		if err != nil {
			return 0, fmt.Errorf("failed reading HX711 data: %w", err)
		}
		raw = raw<<1 | uint32(bit&1)
	}
	return decodeHX711(raw, hx711GainA128)
}

func (h *HX711) waitReady(ctx context.Context) error {
	for {
		v, err := h.data.Value()
		if err != nil {
			return fmt.Errorf("failed reading HX711 data: %w", err)
		}
		if v == 0 {
			return nil
		}
		select {
		case <-h.ready:
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *HX711) pulse() error {
	if err := h.clock.SetValue(1); err != nil {
		return fmt.Errorf("failed setting HX711 clock: %w", err)
	}
	if err := h.clock.SetValue(0); err != nil {
		return fmt.Errorf("failed setting HX711 clock: %w", err)
	}
	return nil
}

// Reset power-cycles the converter by holding the clock high for more
// than 60 us.
func (h *HX711) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.clock.SetValue(1); err != nil {
		return fmt.Errorf("failed setting HX711 clock: %w", err)
	}
	time.Sleep(100 * time.Microsecond)
	return h.clock.SetValue(0)
}

func (h *HX711) Close() error {
	err1 := h.data.Close()
	err2 := h.clock.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// decodeHX711 validates and sign-extends a frame of 24 data bits followed
// by extra gain-select bits. DT stays high after the last gain pulse, so a
// zero in the tail means the frame was not clocked correctly.
func decodeHX711(raw uint32, extra int) (int64, error) {
	tail := uint32(1)<<extra - 1
	if ^raw&tail != 0 {
		return 0, fmt.Errorf("%w: frame %#x", ErrReadFailed, raw)
	}
	v := int64(raw>>extra) & 0xffffff
	if v&0x800000 != 0 {
		v -= 0x1000000
	}
	return v, nil
}
