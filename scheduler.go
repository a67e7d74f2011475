package tracemark

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Scheduler drives the scanner from a ticker. It owns one ScanState and runs
// exactly one Step per tick.
type Scheduler struct {
	e        *Engine
	scanner  *Scanner
	interval time.Duration
	rebuild  bool

	mu     sync.Mutex
	state  ScanState
	cancel context.CancelFunc
	done   chan struct{}

	// OnStep, when set, observes every step result. It runs on the
	// scheduler goroutine.
	OnStep func(StepResult)
}

// NewScheduler creates a stopped scheduler using the engine's configured
// interval and chunk size.
func NewScheduler(e *Engine) *Scheduler {
	return &Scheduler{
		e:        e,
		scanner:  e.Scanner(),
		interval: e.cfg.ScanInterval,
		rebuild:  e.cfg.RebuildOnCycle,
		state:    NewScanState(e.cfg.GroupBySize),
	}
}

// Start begins ticking. It fails with ErrScannerRunning when already running
// and with ErrUnconfigured when the scan settings are incomplete.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrScannerRunning
	}
	if err := s.e.cfg.ValidateScan(); err != nil {
		return errors.Join(ErrUnconfigured, err)
	}
	if s.interval <= 0 {
		s.interval = s.e.cfg.ScanInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.e.running.Store(true)
	s.e.logger.Info("scanner on", "interval", s.interval)

	go s.loop(ctx, s.done)
	return nil
}

// Stop halts the ticker and waits for a step in flight to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.e.running.Store(false)
	s.e.logger.Info("scanner off")
}

// Toggle starts a stopped scheduler or stops a running one and reports
// whether it is now running.
func (s *Scheduler) Toggle(ctx context.Context) (bool, error) {
	if s.Running() {
		s.Stop()
		return false, nil
	}
	if err := s.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Running reports whether the ticker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// State returns a copy of the current scan state.
func (s *Scheduler) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(context.WithoutCancel(ctx))
		}
	}
}

// tick runs one step. The step is not cancelled by Stop; it finishes first.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	st, res := s.scanner.Step(ctx, st)

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	if res.Err != nil {
		s.e.logger.Warn("scan step", "phase", res.Phase, "error", res.Err)
	} else {
		s.e.logger.Debug("scan step", "phase", res.Phase, "files", res.Files,
			"written", res.Written, "pruned", res.Pruned, "failures", res.Failures)
	}
	if s.OnStep != nil {
		s.OnStep(res)
	}

	if res.CycleDone && s.rebuild {
		if _, err := s.e.BuildSolutions(ctx); err != nil {
			s.e.logger.Warn("rebuild solutions", "error", err)
		}
		if _, err := s.e.BuildMarkerTable(ctx); err != nil {
			s.e.logger.Warn("rebuild marker table", "error", err)
		}
	}
}
