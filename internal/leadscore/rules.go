package leadscore

import (
	"fmt"
	"sync"
)

// DefaultRules returns the built-in scoring rule table. Order matters: rule
// lookup is a first-match linear scan, and the ordering is part of the
// documented contract.
func DefaultRules() []ScoringRule {
	return []ScoringRule{
		{ID: "message-sent", Action: ActionMessageSent, Name: "Message sent", Description: "Outbound message delivered to the contact", Points: 1, Enabled: true, MaxPerDay: 10},
		{ID: "message-opened", Action: ActionMessageOpened, Name: "Message opened", Description: "Contact opened a message", Points: 3, Enabled: true, MaxPerDay: 5},
		{ID: "message-replied", Action: ActionMessageReplied, Name: "Message replied", Description: "Contact replied to a message", Points: 10, Enabled: true, CooldownMinutes: 10},
		{ID: "link-clicked", Action: ActionLinkClicked, Name: "Link clicked", Description: "Contact clicked a tracked link", Points: 5, Enabled: true, MaxPerDay: 5},
		{ID: "positive-reply", Action: ActionPositiveReply, Name: "Positive reply", Description: "Reply classified as positive sentiment", Points: 15, Enabled: true, CooldownMinutes: 10},
		{ID: "negative-reply", Action: ActionNegativeReply, Name: "Negative reply", Description: "Reply classified as negative sentiment", Points: -10, Enabled: true},
		{ID: "question-asked", Action: ActionQuestionAsked, Name: "Question asked", Description: "Contact asked a question", Points: 8, Enabled: true, CooldownMinutes: 5},
		{ID: "price-inquiry", Action: ActionPriceInquiry, Name: "Price inquiry", Description: "Contact asked about pricing", Points: 25, Enabled: true},
		{ID: "demo-requested", Action: ActionDemoRequested, Name: "Demo requested", Description: "Contact requested a product demo", Points: 30, Enabled: true},
		{ID: "meeting-scheduled", Action: ActionMeetingScheduled, Name: "Meeting scheduled", Description: "Contact scheduled a meeting", Points: 40, Enabled: true},
		{ID: "complaint", Action: ActionComplaint, Name: "Complaint", Description: "Contact raised a complaint", Points: -20, Enabled: true},
		{ID: "inactive-7d", Action: ActionInactive7d, Name: "Inactive 7 days", Description: "No activity for 7 days", Points: -5, Enabled: true, MaxPerDay: 1},
		{ID: "inactive-30d", Action: ActionInactive30d, Name: "Inactive 30 days", Description: "No activity for 30 days", Points: -15, Enabled: true, MaxPerDay: 1},
	}
}

// RuleRegistry holds the ordered scoring rule table. All methods are
// thread-safe. The registry has no side effects beyond in-memory state;
// the engine is responsible for persisting changes.
type RuleRegistry struct {
	mu    sync.RWMutex
	rules []ScoringRule
}

// NewRuleRegistry creates a registry seeded with the given rules, or the
// defaults when rules is empty.
func NewRuleRegistry(rules []ScoringRule) *RuleRegistry {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	r := &RuleRegistry{}
	r.rules = append(r.rules, rules...)
	return r
}

// List returns a copy of the rule table in scan order.
func (r *RuleRegistry) List() []ScoringRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ScoringRule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Lookup returns the first enabled rule for the action. Disabled rules are
// treated as if they don't exist.
func (r *RuleRegistry) Lookup(action Action) (ScoringRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if rule.Enabled && rule.Action == action {
			return rule, true
		}
	}
	return ScoringRule{}, false
}

// Update merges a patch into the rule with the given ID. ID and Action are
// immutable. Returns the updated rule.
func (r *RuleRegistry) Update(ruleID string, patch RulePatch) (ScoringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rules {
		if r.rules[i].ID != ruleID {
			continue
		}
		rule := &r.rules[i]
		if patch.Name != nil {
			rule.Name = *patch.Name
		}
		if patch.Description != nil {
			rule.Description = *patch.Description
		}
		if patch.Points != nil {
			rule.Points = *patch.Points
		}
		if patch.Enabled != nil {
			rule.Enabled = *patch.Enabled
		}
		if patch.MaxPerDay != nil {
			rule.MaxPerDay = max(*patch.MaxPerDay, 0)
		}
		if patch.CooldownMinutes != nil {
			rule.CooldownMinutes = max(*patch.CooldownMinutes, 0)
		}
		return *rule, nil
	}
	return ScoringRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
}

// Reset restores the built-in default rule table.
func (r *RuleRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = DefaultRules()
}
