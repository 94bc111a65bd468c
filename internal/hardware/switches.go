package hardware

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"litterbox-service/internal/logger"
)

type SwitchesConfig struct {
	Chip     string        `yaml:"chip"`
	Lines    []int         `yaml:"lines"`
	Debounce time.Duration `yaml:"debounce"`
}

// Switches reports debounced falling edges on the limit switch lines.
type Switches struct {
	lines   []*gpiocdev.Line
	buttons map[int]int
	onEdge  func(button int)
	logger  *logger.Logger
}

// NewSwitches requests one input line per button. Returns nil if no lines
// are configured (switches disabled).
func NewSwitches(cfg SwitchesConfig, onEdge func(button int), l *logger.Logger) (*Switches, error) {
	if len(cfg.Lines) == 0 {
		return nil, nil
	}
	if cfg.Chip == "" {
		cfg.Chip = DefaultGPIOChip
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultSwitchDebounce
	}

	s := &Switches{
		buttons: make(map[int]int, len(cfg.Lines)),
		onEdge:  onEdge,
		logger:  l,
	}
	for button, offset := range cfg.Lines {
		s.buttons[offset] = button
	}

	for button, offset := range cfg.Lines {
		line, err := gpiocdev.RequestLine(cfg.Chip, offset,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(cfg.Debounce),
			gpiocdev.WithConsumer(Consumer),
			gpiocdev.WithEventHandler(s.handleEvent))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to request switch %d (%s line %d): %w", button, cfg.Chip, offset, err)
		}
		s.lines = append(s.lines, line)
		l.Infof("Configured switch %d: %s line %d", button, cfg.Chip, offset)
	}
	return s, nil
}

func (s *Switches) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	button, ok := s.buttons[evt.Offset]
	if !ok {
		return
	}
	s.logger.Debugf("switch %d edge (line %d)", button, evt.Offset)
	s.onEdge(button)
}

func (s *Switches) Close() error {
	var firstErr error
	for _, line := range s.lines {
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.lines = nil
	return firstErr
}
