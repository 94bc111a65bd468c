package core

import (
	"context"
	"io"
	"sync"
	"time"

	"litterbox-service/internal/hardware"
	"litterbox-service/internal/types"
)

func (s *LitterboxSystem) publishLoop(ctx context.Context) {
	s.publishStatus()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.deps.Motor.Changes():
			s.publishStatus()
		}
	}
}

func (s *LitterboxSystem) publishStatus() {
	status := s.Status()
	if err := s.deps.Redis.PublishMotorStatus(status); err != nil {
		s.logger.Warnf("Failed to publish motor status: %v", err)
	}
	if s.deps.Telemetry != nil {
		if err := s.deps.Telemetry.PublishStatus(status); err != nil {
			s.logger.Debugf("Failed to publish MQTT status: %v", err)
		}
	}
}

// weightLoop samples the load cell. After a failed read it backs off,
// resets the converter and reports a fault until a read succeeds again.
func (s *LitterboxSystem) weightLoop(ctx context.Context) {
	interval := s.cfg.Weight.Interval
	if interval <= 0 {
		interval = hardware.HX711ReadInterval
	}
	backoff := s.cfg.Weight.Backoff
	if backoff <= 0 {
		backoff = hardware.HX711ErrorBackoff
	}

	for {
		raw, err := s.deps.LoadCell.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warnf("Load cell read failed: %v", err)
			s.setLoadCellFault(true)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if err := s.deps.LoadCell.Reset(); err != nil {
				s.logger.Warnf("Load cell reset failed: %v", err)
			}
			continue
		}
		s.setLoadCellFault(false)

		w := types.Weight{Raw: raw, Grams: s.cfg.Weight.Grams(raw)}
		if err := s.deps.Redis.PublishWeight(w); err != nil {
			s.logger.Debugf("Failed to publish weight: %v", err)
		}
		if s.deps.Telemetry != nil {
			if err := s.deps.Telemetry.PublishWeight(w); err != nil {
				s.logger.Debugf("Failed to publish MQTT weight: %v", err)
			}
		}
		s.console.WriteWeight(w)

		if !sleepCtx(ctx, interval) {
			return
		}
	}
}

func (s *LitterboxSystem) setLoadCellFault(present bool) {
	s.mu.Lock()
	changed := s.faultShown != present
	s.faultShown = present
	s.mu.Unlock()
	if !changed {
		return
	}

	var err error
	if present {
		err = s.deps.Redis.ReportFaultPresent(FaultLoadCell, "load cell read failed")
	} else {
		err = s.deps.Redis.ReportFaultAbsent(FaultLoadCell)
	}
	if err != nil {
		s.logger.Warnf("Failed to report load cell fault: %v", err)
	}
}

// consoleLoop serves one operator session at a time, reopening the
// transport after each session ends.
func (s *LitterboxSystem) consoleLoop(ctx context.Context) {
	for {
		rw, err := s.deps.OpenConsole()
		if err != nil {
			s.logger.Warnf("Failed to open console: %v", err)
		} else {
			s.serveConsole(ctx, rw)
		}
		if !sleepCtx(ctx, consoleReopenBackoff) {
			return
		}
	}
}

func (s *LitterboxSystem) serveConsole(ctx context.Context, rw io.ReadWriteCloser) {
	var once sync.Once
	closeRW := func() {
		once.Do(func() { rw.Close() })
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeRW()
		case <-done:
		}
	}()

	err := s.console.Serve(rw)
	close(done)
	closeRW()
	if err != nil && ctx.Err() == nil {
		s.logger.Warnf("Console session ended: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
