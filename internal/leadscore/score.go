package leadscore

import (
	"math"
	"time"
)

// Action sets defining the derived category scores. Categories are display
// metrics recomputed from a recent window; TotalScore and the history ring
// are the persisted ground truth.
var (
	behaviorActions = map[Action]struct{}{
		ActionMessageReplied: {},
		ActionLinkClicked:    {},
		ActionMessageOpened:  {},
	}

	engagementActions = map[Action]struct{}{
		ActionPositiveReply: {},
		ActionQuestionAsked: {},
	}

	intentActions = map[Action]struct{}{
		ActionPriceInquiry:     {},
		ActionDemoRequested:    {},
		ActionMeetingScheduled: {},
	}
)

// recomputeCategoriesLocked rebuilds the behavior/engagement/intent sums
// from the CategoryWindow newest entries and refreshes the recency
// staircase. Caller holds c.mu.
func (e *Engine) recomputeCategoriesLocked(c *contactState, now time.Time) {
	behavior, engagement, intent := 0, 0, 0

	n := c.ring.len()
	start := n - e.cfg.CategoryWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < n; i++ {
		entry := c.ring.at(i)
		if _, ok := behaviorActions[entry.Action]; ok {
			behavior += entry.Points
		}
		if _, ok := engagementActions[entry.Action]; ok {
			engagement += entry.Points
		}
		if _, ok := intentActions[entry.Action]; ok {
			intent += entry.Points
		}
	}

	if c.score.AIAnalysis != nil {
		intent = max(0, intent+aiBonus(c.score.AIAnalysis))
	}

	c.score.BehaviorScore = behavior
	c.score.EngagementScore = engagement
	c.score.IntentScore = intent
	c.score.RecencyScore = recencyScore(c.score.LastActivity, now)
}

// recencyScore maps whole days since the last activity onto the staircase
// <1d→20, <3d→15, <7d→10, <14d→5, else 0.
func recencyScore(lastActivity *time.Time, now time.Time) int {
	if lastActivity == nil {
		return 0
	}
	days := int(now.Sub(*lastActivity).Hours() / 24)
	switch {
	case days < 1:
		return 20
	case days < 3:
		return 15
	case days < 7:
		return 10
	case days < 14:
		return 5
	default:
		return 0
	}
}

// aiBonus converts an AI analysis into an intent score bonus:
// round(purchaseIntent*0.3 + urgency*0.2).
func aiBonus(a *AIAnalysis) int {
	return int(math.Round(float64(a.PurchaseIntent)*0.3 + float64(a.Urgency)*0.2))
}
