package leadscore

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for lead scoring operations.
var (
	ErrEmptyContactID = errors.New("contact ID cannot be empty")
	ErrUnknownAction  = errors.New("unknown action")
	ErrRuleNotFound   = errors.New("rule not found")
	ErrScoreNotFound  = errors.New("lead score not found")
)

// Score bounds. TotalScore is always clamped to this range before heat
// classification, so the heat table stays exhaustive.
const (
	MinScore = -100
	MaxScore = 999
)

// Action identifies a customer-interaction event type. The enumeration is
// closed: RecordAction rejects anything outside this set.
type Action string

const (
	ActionMessageSent      Action = "message_sent"
	ActionMessageOpened    Action = "message_opened"
	ActionMessageReplied   Action = "message_replied"
	ActionLinkClicked      Action = "link_clicked"
	ActionPositiveReply    Action = "positive_reply"
	ActionNegativeReply    Action = "negative_reply"
	ActionQuestionAsked    Action = "question_asked"
	ActionPriceInquiry     Action = "price_inquiry"
	ActionDemoRequested    Action = "demo_requested"
	ActionMeetingScheduled Action = "meeting_scheduled"
	ActionComplaint        Action = "complaint"
	ActionInactive7d       Action = "inactive_7d"
	ActionInactive30d      Action = "inactive_30d"

	// ActionManualAdjustment is the neutral tag for operator overrides.
	// It deliberately has no scoring rule; AdjustScore bypasses rules.
	ActionManualAdjustment Action = "manual_adjustment"
)

// knownActions is the closed enumeration accepted by RecordAction.
var knownActions = map[Action]struct{}{
	ActionMessageSent:      {},
	ActionMessageOpened:    {},
	ActionMessageReplied:   {},
	ActionLinkClicked:      {},
	ActionPositiveReply:    {},
	ActionNegativeReply:    {},
	ActionQuestionAsked:    {},
	ActionPriceInquiry:     {},
	ActionDemoRequested:    {},
	ActionMeetingScheduled: {},
	ActionComplaint:        {},
	ActionInactive7d:       {},
	ActionInactive30d:      {},
	ActionManualAdjustment: {},
}

// IsValidAction returns true if a is part of the closed action enumeration.
func IsValidAction(a Action) bool {
	_, ok := knownActions[a]
	return ok
}

// ScoringRule maps an action to a signed point delta plus optional rate
// limits. At most one enabled rule per action is consulted; lookup is a
// first-match linear scan over the ordered rule table.
type ScoringRule struct {
	ID          string `json:"id"`
	Action      Action `json:"action"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Enabled     bool   `json:"enabled"`

	// MaxPerDay caps applications per contact per calendar day in the
	// engine's configured rate-limit time zone. 0 means unlimited.
	MaxPerDay int `json:"max_per_day,omitempty"`

	// CooldownMinutes is the minimum gap between two applications for the
	// same contact. 0 means no cooldown.
	CooldownMinutes int `json:"cooldown_minutes,omitempty"`
}

// RulePatch holds optional field updates for a scoring rule. Nil fields are
// left unchanged. A rule's ID and Action are immutable and cannot be
// patched. Setting MaxPerDay or CooldownMinutes to a negative value clears
// the limit.
type RulePatch struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Points          *int    `json:"points,omitempty"`
	Enabled         *bool   `json:"enabled,omitempty"`
	MaxPerDay       *int    `json:"max_per_day,omitempty"`
	CooldownMinutes *int    `json:"cooldown_minutes,omitempty"`
}

// ScoreHistoryEntry is one applied scoring event. Entries are append-only
// and never mutated after creation.
type ScoreHistoryEntry struct {
	ID        string            `json:"id"`
	ContactID string            `json:"contact_id"`
	Action    Action            `json:"action"`
	Points    int               `json:"points"`
	Reason    string            `json:"reason"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// newHistoryEntry constructs an entry with a generated UUID.
func newHistoryEntry(contactID string, action Action, points int, reason string, ts time.Time, metadata map[string]string) ScoreHistoryEntry {
	return ScoreHistoryEntry{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Action:    action,
		Points:    points,
		Reason:    reason,
		Timestamp: ts,
		Metadata:  metadata,
	}
}

// AIAnalysis is an externally computed intent/sentiment signal folded into a
// lead's derived intent score. It never touches the auditable point ledger.
type AIAnalysis struct {
	Sentiment      string    `json:"sentiment"`
	PurchaseIntent int       `json:"purchase_intent"`
	Urgency        int       `json:"urgency"`
	Keywords       []string  `json:"keywords,omitempty"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// LeadScore is the authoritative per-contact scoring state. One exists per
// contact, created lazily on the first accepted event and removed only by an
// explicit ClearScore call.
type LeadScore struct {
	ContactID  string    `json:"contact_id"`
	TotalScore int       `json:"total_score"`
	HeatLevel  HeatLevel `json:"heat_level"`

	// Derived category metrics, recomputed from a recent history window.
	BehaviorScore   int `json:"behavior_score"`
	EngagementScore int `json:"engagement_score"`
	IntentScore     int `json:"intent_score"`
	RecencyScore    int `json:"recency_score"`

	LastActivity  *time.Time  `json:"last_activity,omitempty"`
	ActivityCount int         `json:"activity_count"`
	AIAnalysis    *AIAnalysis `json:"ai_analysis,omitempty"`

	// History is the contact's bounded ring, oldest first. Populated on
	// query/persistence copies; capacity is Config.ContactHistoryLimit.
	History []ScoreHistoryEntry `json:"history"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RecordReason explains the outcome of a record attempt.
type RecordReason string

const (
	// ReasonApplied means the rule fired and points were applied.
	ReasonApplied RecordReason = "applied"

	// ReasonNoRule means the action is recognized but has no enabled rule.
	ReasonNoRule RecordReason = "no_rule"

	// ReasonDailyLimit means the rule's per-day cap suppressed the event.
	ReasonDailyLimit RecordReason = "daily_limit"

	// ReasonCooldown means the rule's cooldown suppressed the event.
	ReasonCooldown RecordReason = "cooldown"
)

// RecordResult reports the points actually applied and why. Suppressed
// outcomes carry zero points and a non-applied reason; none of them are
// errors.
type RecordResult struct {
	Points int          `json:"points"`
	Reason RecordReason `json:"reason"`
}

// clampScore bounds a total score to [MinScore, MaxScore].
func clampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
