package leadscore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures an Engine.
type Config struct {
	// ContactHistoryLimit caps each contact's history ring (default: 100).
	ContactHistoryLimit int

	// GlobalHistoryLimit caps the global audit feed (default: 1000).
	GlobalHistoryLimit int

	// CategoryWindow is how many recent entries feed the derived category
	// scores (default: 20).
	CategoryWindow int

	// RateLimitTimezone is the IANA time zone defining the calendar-day
	// boundary for MaxPerDay checks (default: "UTC"). Deployments close to
	// their contacts may prefer a local zone; the boundary is deliberately
	// configuration, not an implicit local-time assumption.
	RateLimitTimezone string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ContactHistoryLimit: 100,
		GlobalHistoryLimit:  1000,
		CategoryWindow:      20,
		RateLimitTimezone:   "UTC",
	}
}

// contactState bundles one contact's authoritative score with its bounded
// history ring. All field access happens under mu; the engine serializes
// every mutation for a contact (rate-limit check, append, recompute) inside
// one critical section.
type contactState struct {
	mu    sync.Mutex
	score LeadScore // History field stays nil; the ring is authoritative
	ring  *ring[ScoreHistoryEntry]
}

// Engine owns all lead scoring state: the rule table, per-contact scores,
// and the global history feed. There is no package-level singleton; callers
// construct an Engine and share it explicitly.
//
// Thread Safety: all public methods are safe for concurrent use. Mutations
// for different contacts proceed in parallel.
type Engine struct {
	cfg    Config
	loc    *time.Location
	logger *zap.Logger
	clock  func() time.Time
	hook   func(LeadScore)

	rules  *RuleRegistry
	levels []HeatLevelConfig

	mu       sync.RWMutex // guards the contacts map, not contact state
	contacts map[string]*contactState

	global *historyLog

	port  Port
	saver *saver

	// decayMu prevents overlapping inactivity passes.
	decayMu sync.Mutex

	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPort injects the persistence port. State is loaded synchronously at
// construction; saves are queued to a background saver and never block
// producers.
func WithPort(port Port) Option {
	return func(e *Engine) {
		e.port = port
	}
}

// WithClock injects the time source, used by tests to control rate-limit
// windows and decay thresholds. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithUpdateHook registers an observer invoked with a copy of the updated
// LeadScore after every accepted mutation. The hook runs on the mutating
// goroutine; keep it fast.
func WithUpdateHook(hook func(LeadScore)) Option {
	return func(e *Engine) {
		e.hook = hook
	}
}

// WithHeatLevels overrides the heat classification table. The table must be
// contiguous and exhaustive over [MinScore, MaxScore].
func WithHeatLevels(levels []HeatLevelConfig) Option {
	return func(e *Engine) {
		if len(levels) > 0 {
			e.levels = levels
		}
	}
}

// New creates an Engine. A nil cfg uses DefaultConfig. When a persistence
// port is configured, prior state is loaded before New returns; load
// failures fall back to default rules and empty state with a warning.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conf := *cfg
	def := DefaultConfig()
	if conf.ContactHistoryLimit <= 0 {
		conf.ContactHistoryLimit = def.ContactHistoryLimit
	}
	if conf.GlobalHistoryLimit <= 0 {
		conf.GlobalHistoryLimit = def.GlobalHistoryLimit
	}
	if conf.CategoryWindow <= 0 {
		conf.CategoryWindow = def.CategoryWindow
	}
	if conf.RateLimitTimezone == "" {
		conf.RateLimitTimezone = def.RateLimitTimezone
	}

	loc, err := time.LoadLocation(conf.RateLimitTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit timezone %q: %w", conf.RateLimitTimezone, err)
	}

	e := &Engine{
		cfg:      conf,
		loc:      loc,
		logger:   zap.NewNop(),
		clock:    time.Now,
		rules:    NewRuleRegistry(nil),
		levels:   DefaultHeatLevels(),
		contacts: make(map[string]*contactState),
		global:   newHistoryLog(conf.GlobalHistoryLimit),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.port != nil {
		e.loadState()
		e.saver = newSaver(e.port, e.logger, e.buildSnapshot)
		go e.saver.run()
	}

	return e, nil
}

// Close stops the background saver after a final flush. Idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.saver != nil {
			e.saver.stop()
		}
	})
	return nil
}

// RecordAction evaluates the enabled rule for the action against the
// contact's history and applies the resulting points.
//
// Suppressed outcomes (no enabled rule, per-day cap, cooldown) return zero
// points with a reason code; they are not errors. Only an empty contact ID
// or an action outside the closed enumeration is an error.
func (e *Engine) RecordAction(ctx context.Context, contactID string, action Action, metadata map[string]string) (RecordResult, error) {
	if contactID == "" {
		return RecordResult{}, ErrEmptyContactID
	}
	if !IsValidAction(action) {
		return RecordResult{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	rule, ok := e.rules.Lookup(action)
	if !ok {
		e.logger.Debug("no enabled rule for action",
			zap.String("contact_id", contactID),
			zap.String("action", string(action)))
		eventsSuppressedTotal.WithLabelValues(string(ReasonNoRule)).Inc()
		return RecordResult{Reason: ReasonNoRule}, nil
	}

	now := e.clock()
	c := e.contact(contactID)

	// Rate-limit check, append, and recompute are one critical section per
	// contact: two racing events must not both pass a gate meant for one.
	c.mu.Lock()
	if rule.MaxPerDay > 0 && c.countOnDayLocked(action, now, e.loc) >= rule.MaxPerDay {
		c.mu.Unlock()
		e.logger.Debug("daily limit reached",
			zap.String("contact_id", contactID),
			zap.String("action", string(action)),
			zap.Int("max_per_day", rule.MaxPerDay))
		eventsSuppressedTotal.WithLabelValues(string(ReasonDailyLimit)).Inc()
		return RecordResult{Reason: ReasonDailyLimit}, nil
	}
	if rule.CooldownMinutes > 0 {
		if last, found := c.lastTimestampLocked(action); found {
			if now.Sub(last) < time.Duration(rule.CooldownMinutes)*time.Minute {
				c.mu.Unlock()
				e.logger.Debug("cooldown active",
					zap.String("contact_id", contactID),
					zap.String("action", string(action)),
					zap.Int("cooldown_minutes", rule.CooldownMinutes))
				eventsSuppressedTotal.WithLabelValues(string(ReasonCooldown)).Inc()
				return RecordResult{Reason: ReasonCooldown}, nil
			}
		}
	}

	entry := newHistoryEntry(contactID, action, rule.Points, rule.Name, now, metadata)
	updated := e.applyLocked(c, entry, now)
	c.mu.Unlock()

	e.global.append(entry)
	eventsAppliedTotal.WithLabelValues(string(action)).Inc()
	e.notify(updated)
	e.markDirty()

	return RecordResult{Points: rule.Points, Reason: ReasonApplied}, nil
}

// AdjustScore applies an operator override. It bypasses rule lookup and
// rate limiting entirely and auto-creates a zero-valued score for unknown
// contacts, since an operator may legitimately score a brand-new contact.
func (e *Engine) AdjustScore(ctx context.Context, contactID string, points int, reason string) (RecordResult, error) {
	if contactID == "" {
		return RecordResult{}, ErrEmptyContactID
	}

	now := e.clock()
	c := e.contact(contactID)

	entry := newHistoryEntry(contactID, ActionManualAdjustment, points, "manual: "+reason, now, nil)
	c.mu.Lock()
	updated := e.applyLocked(c, entry, now)
	c.mu.Unlock()

	e.global.append(entry)
	eventsAppliedTotal.WithLabelValues(string(ActionManualAdjustment)).Inc()
	e.notify(updated)
	e.markDirty()

	return RecordResult{Points: points, Reason: ReasonApplied}, nil
}

// UpdateAIAnalysis folds an externally computed analysis into the contact's
// derived intent score. It requires an existing lead score and returns
// ErrScoreNotFound otherwise; this path never creates a contact. The total
// score and the point ledger are deliberately untouched so AI signals shape
// prioritization display without polluting the audit trail.
func (e *Engine) UpdateAIAnalysis(ctx context.Context, contactID string, analysis AIAnalysis) error {
	if contactID == "" {
		return ErrEmptyContactID
	}

	e.mu.RLock()
	c := e.contacts[contactID]
	e.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("%w: %s", ErrScoreNotFound, contactID)
	}

	now := e.clock()
	c.mu.Lock()
	a := analysis
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = now
	}
	c.score.AIAnalysis = &a
	c.score.IntentScore = max(0, c.score.IntentScore+aiBonus(&a))
	c.score.UpdatedAt = now
	updated := e.copyScoreLocked(c)
	c.mu.Unlock()

	e.notify(updated)
	e.markDirty()

	e.logger.Debug("ai analysis updated",
		zap.String("contact_id", contactID),
		zap.String("sentiment", a.Sentiment),
		zap.Int("purchase_intent", a.PurchaseIntent),
		zap.Int("urgency", a.Urgency))
	return nil
}

// ClearScore removes a contact's score and history. Returns false if the
// contact was unknown. This is the only path that deletes scoring state;
// inactivity changes scores but never deletes them.
func (e *Engine) ClearScore(contactID string) bool {
	e.mu.Lock()
	_, existed := e.contacts[contactID]
	delete(e.contacts, contactID)
	contactsTracked.Set(float64(len(e.contacts)))
	e.mu.Unlock()

	if existed {
		e.markDirty()
	}
	return existed
}

// Rules returns the current rule table in scan order.
func (e *Engine) Rules() []ScoringRule {
	return e.rules.List()
}

// UpdateRule merges a patch into the rule with the given ID. A rule's ID
// and action are immutable.
func (e *Engine) UpdateRule(ruleID string, patch RulePatch) (ScoringRule, error) {
	rule, err := e.rules.Update(ruleID, patch)
	if err != nil {
		return ScoringRule{}, err
	}
	e.markDirty()
	return rule, nil
}

// ResetRules restores the built-in default rule table.
func (e *Engine) ResetRules() {
	e.rules.Reset()
	e.markDirty()
}

// contact returns the state for a contact, lazily creating a zero-valued
// score on first use.
func (e *Engine) contact(contactID string) *contactState {
	e.mu.RLock()
	c := e.contacts[contactID]
	e.mu.RUnlock()
	if c != nil {
		return c
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c = e.contacts[contactID]; c != nil {
		return c
	}
	c = &contactState{
		score: LeadScore{
			ContactID: contactID,
			HeatLevel: ClassifyHeat(e.levels, 0),
		},
		ring: newRing[ScoreHistoryEntry](e.cfg.ContactHistoryLimit),
	}
	e.contacts[contactID] = c
	contactsTracked.Set(float64(len(e.contacts)))
	return c
}

// applyLocked appends the entry and recomputes the contact's score state.
// Caller holds c.mu. Returns a copy of the updated score.
func (e *Engine) applyLocked(c *contactState, entry ScoreHistoryEntry, now time.Time) LeadScore {
	c.ring.push(entry)

	s := &c.score
	s.TotalScore = clampScore(s.TotalScore + entry.Points)
	ts := entry.Timestamp
	s.LastActivity = &ts
	s.ActivityCount++

	e.recomputeCategoriesLocked(c, now)
	s.HeatLevel = ClassifyHeat(e.levels, s.TotalScore)
	s.UpdatedAt = now

	return e.copyScoreLocked(c)
}

// copyScoreLocked deep-copies the contact's score, flattening the history
// ring oldest-first. Caller holds c.mu. History entries are append-only, so
// sharing their metadata maps is safe.
func (e *Engine) copyScoreLocked(c *contactState) LeadScore {
	out := c.score
	if c.score.LastActivity != nil {
		ts := *c.score.LastActivity
		out.LastActivity = &ts
	}
	if c.score.AIAnalysis != nil {
		a := *c.score.AIAnalysis
		a.Keywords = append([]string(nil), c.score.AIAnalysis.Keywords...)
		out.AIAnalysis = &a
	}
	out.History = c.ring.items()
	return out
}

// notify invokes the update hook with a fresh copy, if registered.
func (e *Engine) notify(score LeadScore) {
	if e.hook != nil {
		e.hook(score)
	}
}

// markDirty queues a coalesced background save.
func (e *Engine) markDirty() {
	if e.saver != nil {
		e.saver.markDirty()
	}
}

// countOnDayLocked counts entries for the action whose timestamp falls on
// the same calendar day as now in the given zone. Caller holds c.mu.
func (c *contactState) countOnDayLocked(action Action, now time.Time, loc *time.Location) int {
	count := 0
	for i := 0; i < c.ring.len(); i++ {
		entry := c.ring.at(i)
		if entry.Action == action && sameCalendarDay(entry.Timestamp, now, loc) {
			count++
		}
	}
	return count
}

// lastTimestampLocked returns the newest entry timestamp for the action.
// Caller holds c.mu.
func (c *contactState) lastTimestampLocked(action Action) (time.Time, bool) {
	for i := c.ring.len() - 1; i >= 0; i-- {
		entry := c.ring.at(i)
		if entry.Action == action {
			return entry.Timestamp, true
		}
	}
	return time.Time{}, false
}

// hasEntryWithinLocked reports whether any entry for the action is newer
// than now minus window. Caller holds c.mu.
func (c *contactState) hasEntryWithinLocked(action Action, window time.Duration, now time.Time) bool {
	cutoff := now.Add(-window)
	for i := c.ring.len() - 1; i >= 0; i-- {
		entry := c.ring.at(i)
		if entry.Timestamp.Before(cutoff) {
			return false
		}
		if entry.Action == action {
			return true
		}
	}
	return false
}

// sameCalendarDay reports whether a and b fall on the same calendar day in
// the given zone.
func sameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
