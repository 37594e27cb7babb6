package leadscore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SnapshotVersion is the current persisted payload version.
const SnapshotVersion = 1

// Snapshot is the full persisted engine state: three independently
// versioned collections. History rings are flattened oldest-first.
type Snapshot struct {
	Version int                   `json:"version"`
	Rules   []ScoringRule         `json:"rules"`
	Scores  map[string]*LeadScore `json:"scores"`
	History []ScoreHistoryEntry   `json:"history"`
}

// Port is the injected persistence interface. The engine has no opinion on
// the storage medium. Load may block startup; Save is called from a
// background saver and should be reasonably quick, but the engine tolerates
// slow or failing implementations without blocking producers.
type Port interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

const (
	saveMaxAttempts = 3
	saveBaseBackoff = 250 * time.Millisecond
	saveTimeout     = 10 * time.Second
	loadTimeout     = 30 * time.Second
)

// saver coalesces dirty marks from producers and writes snapshots on a
// dedicated goroutine with retry and backoff. In-memory state stays
// authoritative regardless of save success.
type saver struct {
	port     Port
	logger   *zap.Logger
	snapshot func() *Snapshot

	dirty  chan struct{} // capacity 1: pending marks coalesce
	stopCh chan struct{}
	done   chan struct{}

	stopOnce sync.Once
}

func newSaver(port Port, logger *zap.Logger, snapshot func() *Snapshot) *saver {
	return &saver{
		port:     port,
		logger:   logger,
		snapshot: snapshot,
		dirty:    make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// markDirty requests a save. Never blocks; a pending request absorbs the
// mark.
func (s *saver) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// run is the saver loop. On stop it drains one pending mark for a final
// flush before returning.
func (s *saver) run() {
	defer close(s.done)

	for {
		select {
		case <-s.dirty:
			s.save()
		case <-s.stopCh:
			select {
			case <-s.dirty:
				s.save()
			default:
			}
			return
		}
	}
}

// stop signals the loop and waits for the final flush. Idempotent.
func (s *saver) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}

// save writes one snapshot, retrying with doubled backoff. Failures are
// logged and counted; they never propagate to producers.
func (s *saver) save() {
	snap := s.snapshot()

	backoff := saveBaseBackoff
	for attempt := 1; attempt <= saveMaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := s.port.Save(ctx, snap)
		cancel()

		if err == nil {
			snapshotSavesTotal.WithLabelValues("success").Inc()
			return
		}

		snapshotSavesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("snapshot save failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", saveMaxAttempts),
			zap.Error(err))

		if attempt < saveMaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	s.logger.Error("snapshot save abandoned, in-memory state remains authoritative",
		zap.Int("attempts", saveMaxAttempts))
}

// buildSnapshot assembles a consistent copy of the engine state for
// persistence.
func (e *Engine) buildSnapshot() *Snapshot {
	snap := &Snapshot{
		Version: SnapshotVersion,
		Rules:   e.rules.List(),
		Scores:  make(map[string]*LeadScore),
		History: e.global.snapshot(),
	}
	for _, score := range e.GetAllScores() {
		snap.Scores[score.ContactID] = score
	}
	return snap
}

// loadState restores engine state from the port. Any failure or corrupt
// payload falls back to default rules and empty state; the engine never
// refuses to start over persistence trouble.
func (e *Engine) loadState() {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	snap, err := e.port.Load(ctx)
	if err != nil {
		e.logger.Warn("loading snapshot failed, starting with defaults", zap.Error(err))
		return
	}
	if snap == nil {
		return
	}

	if len(snap.Rules) > 0 {
		e.rules = NewRuleRegistry(snap.Rules)
	}
	for contactID, score := range snap.Scores {
		if contactID == "" || score == nil {
			continue
		}
		c := &contactState{
			score: *score,
			ring:  newRing[ScoreHistoryEntry](e.cfg.ContactHistoryLimit),
		}
		for _, entry := range score.History {
			c.ring.push(entry)
		}
		c.score.History = nil
		e.contacts[contactID] = c
	}
	for _, entry := range snap.History {
		e.global.append(entry)
	}
	contactsTracked.Set(float64(len(e.contacts)))

	e.logger.Info("snapshot loaded",
		zap.Int("contacts", len(e.contacts)),
		zap.Int("rules", len(snap.Rules)),
		zap.Int("history", len(snap.History)))
}
