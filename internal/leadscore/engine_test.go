package leadscore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a mutable time source for driving rate-limit windows and
// decay thresholds in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestEngine builds an engine pinned to a fake clock starting at noon
// UTC, far from any day boundary.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	e, err := New(nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, clock
}

func TestRecordAction_AppliesRulePoints(t *testing.T) {
	// Scenario A: price_inquiry is +25 with no limits; a fresh contact
	// lands at 25 and classifies warm.
	e, _ := newTestEngine(t)

	res, err := e.RecordAction(context.Background(), "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Points)
	assert.Equal(t, ReasonApplied, res.Reason)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, 25, score.TotalScore)
	assert.Equal(t, HeatWarm, score.HeatLevel)
	assert.Equal(t, 1, score.ActivityCount)
	require.NotNil(t, score.LastActivity)
}

func TestRecordAction_HeatProgression(t *testing.T) {
	// Scenario B: repeated price inquiries walk the score across the
	// warm/hot boundary. 50 is still warm (boundary), 75 is hot.
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, want := range []struct {
		total int
		heat  HeatLevel
	}{
		{25, HeatWarm},
		{50, HeatWarm},
		{75, HeatHot},
	} {
		_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
		require.NoError(t, err)

		score, ok := e.GetScore("u1")
		require.True(t, ok)
		assert.Equal(t, want.total, score.TotalScore)
		assert.Equal(t, want.heat, score.HeatLevel)
	}
}

func TestRecordAction_UnknownActionIsError(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RecordAction(context.Background(), "u1", Action("carrier_pigeon"), nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, ok := e.GetScore("u1")
	assert.False(t, ok, "failed record must not create a contact")
}

func TestRecordAction_EmptyContactIDIsError(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RecordAction(context.Background(), "", ActionPriceInquiry, nil)
	assert.ErrorIs(t, err, ErrEmptyContactID)
}

func TestRecordAction_UnconfiguredActionIsNoOp(t *testing.T) {
	// A recognized action with its rule disabled returns zero points with
	// reason no_rule, not an error.
	e, _ := newTestEngine(t)

	enabled := false
	_, err := e.UpdateRule("price-inquiry", RulePatch{Enabled: &enabled})
	require.NoError(t, err)

	res, err := e.RecordAction(context.Background(), "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Points)
	assert.Equal(t, ReasonNoRule, res.Reason)

	_, ok := e.GetScore("u1")
	assert.False(t, ok, "suppressed record must not create a contact")
}

func TestRecordAction_MaxPerDay(t *testing.T) {
	// message_opened has maxPerDay 5: issuing it 8 times on one day applies
	// exactly 5 and suppresses 3.
	e, clock := newTestEngine(t)
	ctx := context.Background()

	applied, suppressed := 0, 0
	for i := 0; i < 8; i++ {
		res, err := e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
		require.NoError(t, err)
		if res.Reason == ReasonApplied {
			applied++
			assert.Equal(t, 3, res.Points)
		} else {
			suppressed++
			assert.Equal(t, ReasonDailyLimit, res.Reason)
			assert.Equal(t, 0, res.Points)
		}
		clock.Advance(time.Minute)
	}

	assert.Equal(t, 5, applied)
	assert.Equal(t, 3, suppressed)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, 15, score.TotalScore)
}

func TestRecordAction_MaxPerDayResetsAtDayBoundary(t *testing.T) {
	// The daily cap is a calendar-day boundary in the configured zone, not
	// a rolling 24h window: two events straddling midnight both apply.
	clock := newFakeClock(time.Date(2025, 6, 15, 23, 50, 0, 0, time.UTC))
	e, err := New(nil, WithClock(clock.Now))
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	one := 1
	_, err = e.UpdateRule("message-opened", RulePatch{MaxPerDay: &one})
	require.NoError(t, err)

	res, err := e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonApplied, res.Reason)

	res, err = e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonDailyLimit, res.Reason)

	clock.Advance(20 * time.Minute) // crosses UTC midnight

	res, err = e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonApplied, res.Reason)
}

func TestRecordAction_Cooldown(t *testing.T) {
	// message_replied has a 10 minute cooldown: a call 2 minutes after the
	// first is suppressed, a call 11 minutes after the first applies.
	e, clock := newTestEngine(t)
	ctx := context.Background()

	res, err := e.RecordAction(ctx, "u1", ActionMessageReplied, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonApplied, res.Reason)

	clock.Advance(2 * time.Minute)
	res, err = e.RecordAction(ctx, "u1", ActionMessageReplied, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCooldown, res.Reason)
	assert.Equal(t, 0, res.Points)

	clock.Advance(9 * time.Minute) // 11 minutes after the first call
	res, err = e.RecordAction(ctx, "u1", ActionMessageReplied, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonApplied, res.Reason)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, 20, score.TotalScore)
}

func TestRecordAction_RateLimitIsPerContact(t *testing.T) {
	// One contact exhausting its daily cap must not affect another.
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
		require.NoError(t, err)
	}
	res, err := e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonDailyLimit, res.Reason)

	res, err = e.RecordAction(ctx, "u2", ActionMessageOpened, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonApplied, res.Reason)
}

func TestRecordAction_ConcurrentCallsRespectDailyLimit(t *testing.T) {
	// Racing events for one contact must not both pass a gate meant to
	// admit one: the per-contact critical section covers check and append.
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.RecordAction(ctx, "u1", ActionMessageOpened, nil)
			if err != nil {
				return
			}
			if res.Reason == ReasonApplied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, applied)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, 15, score.TotalScore)
}

func TestAdjustScore_ClampsToBounds(t *testing.T) {
	// Scenario C: a -200 correction clamps to -100 and classifies cold.
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)

	res, err := e.AdjustScore(ctx, "u1", -200, "correction")
	require.NoError(t, err)
	assert.Equal(t, ReasonApplied, res.Reason)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, MinScore, score.TotalScore)
	assert.Equal(t, HeatCold, score.HeatLevel)

	_, err = e.AdjustScore(ctx, "u1", 5000, "overshoot")
	require.NoError(t, err)
	score, _ = e.GetScore("u1")
	assert.Equal(t, MaxScore, score.TotalScore)
	assert.Equal(t, HeatBurning, score.HeatLevel)
}

func TestAdjustScore_AutoCreatesContact(t *testing.T) {
	// Operators may score brand-new contacts; the manual path creates a
	// zero-valued score on demand and tags the entry reason.
	e, _ := newTestEngine(t)

	res, err := e.AdjustScore(context.Background(), "newbie", 10, "met at conference")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Points)

	score, ok := e.GetScore("newbie")
	require.True(t, ok)
	assert.Equal(t, 10, score.TotalScore)
	require.Len(t, score.History, 1)
	assert.Equal(t, ActionManualAdjustment, score.History[0].Action)
	assert.Equal(t, "manual: met at conference", score.History[0].Reason)
}

func TestTotalScore_AlwaysWithinBounds(t *testing.T) {
	// Any sequence of records and adjustments keeps the total in
	// [MinScore, MaxScore].
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := e.RecordAction(ctx, "u1", ActionMeetingScheduled, nil)
		require.NoError(t, err)
		score, _ := e.GetScore("u1")
		assert.GreaterOrEqual(t, score.TotalScore, MinScore)
		assert.LessOrEqual(t, score.TotalScore, MaxScore)
	}
	score, _ := e.GetScore("u1")
	assert.Equal(t, MaxScore, score.TotalScore)

	for i := 0; i < 60; i++ {
		_, err := e.AdjustScore(ctx, "u1", -50, "drain")
		require.NoError(t, err)
		score, _ := e.GetScore("u1")
		assert.GreaterOrEqual(t, score.TotalScore, MinScore)
	}
	score, _ = e.GetScore("u1")
	assert.Equal(t, MinScore, score.TotalScore)
}

func TestCategoryScores_RecomputedFromRecentWindow(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionMessageOpened, nil) // behavior +3
	require.NoError(t, err)
	_, err = e.RecordAction(ctx, "u1", ActionQuestionAsked, nil) // engagement +8
	require.NoError(t, err)
	_, err = e.RecordAction(ctx, "u1", ActionPriceInquiry, nil) // intent +25
	require.NoError(t, err)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, 3, score.BehaviorScore)
	assert.Equal(t, 8, score.EngagementScore)
	assert.Equal(t, 25, score.IntentScore)
	assert.Equal(t, 20, score.RecencyScore, "activity just now scores the top recency step")
	assert.Equal(t, 36, score.TotalScore)
}

func TestCategoryScores_WindowSlidesPastOldEntries(t *testing.T) {
	// With a 3-entry window, an early price inquiry stops contributing to
	// the intent category once newer entries push it out; the total keeps
	// the points.
	clock := newFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	e, err := New(&Config{CategoryWindow: 3}, WithClock(clock.Now))
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	_, err = e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		_, err = e.RecordAction(ctx, "u1", ActionMessageSent, nil)
		require.NoError(t, err)
	}

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Equal(t, 0, score.IntentScore, "price inquiry left the category window")
	assert.Equal(t, 28, score.TotalScore, "total score keeps all applied points")
}

func TestUpdateAIAnalysis_AdjustsIntentOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)

	err = e.UpdateAIAnalysis(ctx, "u1", AIAnalysis{
		Sentiment:      "positive",
		PurchaseIntent: 80,
		Urgency:        50,
		Keywords:       []string{"pricing", "deadline"},
	})
	require.NoError(t, err)

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	// bonus = round(80*0.3 + 50*0.2) = 34
	assert.Equal(t, 25+34, score.IntentScore)
	assert.Equal(t, 25, score.TotalScore, "AI blend never touches the point ledger")
	require.NotNil(t, score.AIAnalysis)
	assert.Equal(t, "positive", score.AIAnalysis.Sentiment)
	assert.Len(t, score.History, 1, "AI blend appends no history entry")
}

func TestUpdateAIAnalysis_UnknownContact(t *testing.T) {
	// The AI path never creates a contact.
	e, _ := newTestEngine(t)

	err := e.UpdateAIAnalysis(context.Background(), "ghost", AIAnalysis{PurchaseIntent: 90})
	assert.ErrorIs(t, err, ErrScoreNotFound)

	_, ok := e.GetScore("ghost")
	assert.False(t, ok)
}

func TestUpdateAIAnalysis_IntentNeverNegative(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionMessageSent, nil) // intent 0
	require.NoError(t, err)

	err = e.UpdateAIAnalysis(ctx, "u1", AIAnalysis{PurchaseIntent: -100, Urgency: -100})
	require.NoError(t, err)

	score, _ := e.GetScore("u1")
	assert.Equal(t, 0, score.IntentScore)
}

func TestClearScore_RemovesContact(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)

	assert.True(t, e.ClearScore("u1"))
	_, ok := e.GetScore("u1")
	assert.False(t, ok)

	assert.False(t, e.ClearScore("u1"), "second clear reports unknown contact")
}

func TestGetHotLeads_SortsAndLimits(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AdjustScore(ctx, "low", 10, "seed")
	require.NoError(t, err)
	_, err = e.AdjustScore(ctx, "mid", 60, "seed")
	require.NoError(t, err)
	_, err = e.AdjustScore(ctx, "high", 150, "seed")
	require.NoError(t, err)

	hot := e.GetHotLeads(2)
	require.Len(t, hot, 2)
	assert.Equal(t, "high", hot[0].ContactID)
	assert.Equal(t, "mid", hot[1].ContactID)

	all := e.GetHotLeads(0)
	require.Len(t, all, 3)
	assert.Equal(t, "low", all[2].ContactID)
}

func TestGetLeadsByHeatLevel(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AdjustScore(ctx, "cold1", 5, "seed")
	require.NoError(t, err)
	_, err = e.AdjustScore(ctx, "warm1", 30, "seed")
	require.NoError(t, err)
	_, err = e.AdjustScore(ctx, "hot1", 80, "seed")
	require.NoError(t, err)

	warm := e.GetLeadsByHeatLevel(HeatWarm)
	require.Len(t, warm, 1)
	assert.Equal(t, "warm1", warm[0].ContactID)

	assert.Empty(t, e.GetLeadsByHeatLevel(HeatBurning))
}

func TestHistory_GlobalFeedNewestFirst(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = e.RecordAction(ctx, "u2", ActionDemoRequested, nil)
	require.NoError(t, err)

	feed := e.History(0)
	require.Len(t, feed, 2)
	assert.Equal(t, "u2", feed[0].ContactID)
	assert.Equal(t, "u1", feed[1].ContactID)

	limited := e.History(1)
	require.Len(t, limited, 1)
	assert.Equal(t, "u2", limited[0].ContactID)
}

func TestContactHistory_RingEvictsOldest(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	e, err := New(&Config{ContactHistoryLimit: 5}, WithClock(clock.Now))
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	score, ok := e.GetScore("u1")
	require.True(t, ok)
	assert.Len(t, score.History, 5)
	assert.Equal(t, 8, score.ActivityCount, "eviction drops entries, not counts")
	assert.True(t, score.History[0].Timestamp.Before(score.History[4].Timestamp), "history is oldest first")
}

func TestUpdateHook_ObservesMutations(t *testing.T) {
	var mu sync.Mutex
	var seen []LeadScore
	e, _ := newTestEngine(t, WithUpdateHook(func(s LeadScore) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)
	err = e.UpdateAIAnalysis(ctx, "u1", AIAnalysis{PurchaseIntent: 50, Urgency: 10})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, 25, seen[0].TotalScore)
	require.NotNil(t, seen[1].AIAnalysis)
}

func TestGetScore_ReturnsCopy(t *testing.T) {
	// Mutating a query result must not leak into engine state.
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecordAction(ctx, "u1", ActionPriceInquiry, nil)
	require.NoError(t, err)

	score, _ := e.GetScore("u1")
	score.TotalScore = 9000
	score.History[0].Points = 9000

	fresh, _ := e.GetScore("u1")
	assert.Equal(t, 25, fresh.TotalScore)
	assert.Equal(t, 25, fresh.History[0].Points)
}
