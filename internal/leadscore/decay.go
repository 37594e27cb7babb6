package leadscore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const day = 24 * time.Hour

// Inactivity thresholds. The 30-day check takes precedence: at most one
// branch fires per contact per pass.
const (
	inactive7dThreshold  = 7 * day
	inactive30dThreshold = 30 * day
)

// DecayReport summarizes one inactivity pass.
type DecayReport struct {
	// Checked is the number of contacts with activity that were evaluated.
	Checked int

	// Applied7d and Applied30d count decay events that applied points.
	Applied7d  int
	Applied30d int

	// Errors counts contacts whose decay event failed; failures never abort
	// the batch.
	Errors int

	// Skipped is true when a pass was already running and this call did
	// nothing.
	Skipped bool
}

// CheckInactiveLeads synthesizes inactivity events for every contact whose
// last activity is past a threshold. Passes never overlap: a call made
// while another pass is running returns immediately with Skipped set.
//
// Decay events route through RecordAction, so they obtain the same
// per-contact serialization and rule gates as any other producer.
func (e *Engine) CheckInactiveLeads(ctx context.Context) DecayReport {
	if !e.decayMu.TryLock() {
		e.logger.Debug("inactivity pass already running, skipping")
		return DecayReport{Skipped: true}
	}
	defer e.decayMu.Unlock()

	now := e.clock()
	var report DecayReport

	e.mu.RLock()
	ids := make([]string, 0, len(e.contacts))
	for id := range e.contacts {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, contactID := range ids {
		e.mu.RLock()
		c := e.contacts[contactID]
		e.mu.RUnlock()
		if c == nil {
			// Cleared since the pass started.
			continue
		}

		c.mu.Lock()
		last := c.score.LastActivity
		var inactive time.Duration
		if last != nil {
			inactive = now.Sub(*last)
		}
		recently30d := c.hasEntryWithinLocked(ActionInactive30d, inactive30dThreshold, now)
		recently7d := c.hasEntryWithinLocked(ActionInactive7d, inactive7dThreshold, now)
		c.mu.Unlock()

		if last == nil {
			continue
		}
		report.Checked++

		var action Action
		switch {
		case inactive >= inactive30dThreshold && !recently30d:
			action = ActionInactive30d
		case inactive >= inactive30dThreshold:
			continue
		case inactive >= inactive7dThreshold && !recently7d:
			action = ActionInactive7d
		default:
			continue
		}

		res, err := e.RecordAction(ctx, contactID, action, nil)
		if err != nil {
			report.Errors++
			e.logger.Warn("decay event failed",
				zap.String("contact_id", contactID),
				zap.String("action", string(action)),
				zap.Error(err))
			continue
		}
		if res.Reason == ReasonApplied {
			if action == ActionInactive30d {
				report.Applied30d++
			} else {
				report.Applied7d++
			}
		}
	}

	decayRunsTotal.Inc()
	e.logger.Debug("inactivity pass completed",
		zap.Int("checked", report.Checked),
		zap.Int("applied_7d", report.Applied7d),
		zap.Int("applied_30d", report.Applied30d),
		zap.Int("errors", report.Errors))

	return report
}

// Scheduler runs periodic inactivity passes in the background.
//
// Thread Safety: all public methods are thread-safe. The running state is
// protected by a mutex so Start/Stop cannot race.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewScheduler creates a scheduler for the engine. It does not start
// automatically; call Start. A non-positive interval defaults to one hour.
func NewScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start begins the background loop. Calling Start on a running scheduler
// returns an error without starting a second goroutine.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.logger.Info("decay scheduler started", zap.Duration("interval", s.interval))
	go s.run(s.stopCh)
	return nil
}

// Stop signals the loop to exit. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("decay scheduler stopped")
}

// run is the ticker loop. A panicking pass is recovered and logged; the
// scheduler keeps running.
func (s *Scheduler) run(stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.safeCheck()
		case <-stopCh:
			return
		}
	}
}

func (s *Scheduler) safeCheck() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("inactivity pass panicked, continuing scheduler",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	report := s.engine.CheckInactiveLeads(context.Background())
	if report.Applied7d > 0 || report.Applied30d > 0 || report.Errors > 0 {
		s.logger.Info("inactivity pass applied decay",
			zap.Int("checked", report.Checked),
			zap.Int("applied_7d", report.Applied7d),
			zap.Int("applied_30d", report.Applied30d),
			zap.Int("errors", report.Errors))
	}
}
