package leadscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRegistry_LookupFirstEnabledMatch(t *testing.T) {
	// Lookup is a first-match linear scan: with two enabled rules for one
	// action, the earlier row wins.
	r := NewRuleRegistry([]ScoringRule{
		{ID: "first", Action: ActionPriceInquiry, Points: 25, Enabled: true},
		{ID: "second", Action: ActionPriceInquiry, Points: 99, Enabled: true},
	})

	rule, ok := r.Lookup(ActionPriceInquiry)
	require.True(t, ok)
	assert.Equal(t, "first", rule.ID)
	assert.Equal(t, 25, rule.Points)
}

func TestRuleRegistry_DisabledRulesInvisible(t *testing.T) {
	r := NewRuleRegistry([]ScoringRule{
		{ID: "off", Action: ActionPriceInquiry, Points: 25, Enabled: false},
		{ID: "on", Action: ActionPriceInquiry, Points: 10, Enabled: true},
	})

	rule, ok := r.Lookup(ActionPriceInquiry)
	require.True(t, ok)
	assert.Equal(t, "on", rule.ID)

	r2 := NewRuleRegistry([]ScoringRule{
		{ID: "off", Action: ActionPriceInquiry, Points: 25, Enabled: false},
	})
	_, ok = r2.Lookup(ActionPriceInquiry)
	assert.False(t, ok)
}

func TestRuleRegistry_UpdateMergesPatch(t *testing.T) {
	r := NewRuleRegistry(nil)

	points := 50
	name := "Pricing question"
	cap5 := 5
	rule, err := r.Update("price-inquiry", RulePatch{
		Points:    &points,
		Name:      &name,
		MaxPerDay: &cap5,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, rule.Points)
	assert.Equal(t, "Pricing question", rule.Name)
	assert.Equal(t, 5, rule.MaxPerDay)

	// Untouched fields survive the merge.
	assert.Equal(t, ActionPriceInquiry, rule.Action)
	assert.True(t, rule.Enabled)

	// The merge persists in the table.
	got, ok := r.Lookup(ActionPriceInquiry)
	require.True(t, ok)
	assert.Equal(t, 50, got.Points)
}

func TestRuleRegistry_UpdateClearsLimitWithNegative(t *testing.T) {
	r := NewRuleRegistry(nil)

	clear := -1
	rule, err := r.Update("message-opened", RulePatch{MaxPerDay: &clear})
	require.NoError(t, err)
	assert.Equal(t, 0, rule.MaxPerDay, "negative patch value clears the cap")
}

func TestRuleRegistry_UpdateUnknownRule(t *testing.T) {
	r := NewRuleRegistry(nil)

	_, err := r.Update("no-such-rule", RulePatch{})
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleRegistry_ResetRestoresDefaults(t *testing.T) {
	r := NewRuleRegistry(nil)

	points := 777
	_, err := r.Update("price-inquiry", RulePatch{Points: &points})
	require.NoError(t, err)

	r.Reset()

	rule, ok := r.Lookup(ActionPriceInquiry)
	require.True(t, ok)
	assert.Equal(t, 25, rule.Points)
}

func TestRuleRegistry_ListReturnsCopy(t *testing.T) {
	r := NewRuleRegistry(nil)

	list := r.List()
	require.NotEmpty(t, list)
	list[0].Points = 9000

	fresh := r.List()
	assert.NotEqual(t, 9000, fresh[0].Points)
}

func TestDefaultRules_OneEnabledRulePerAction(t *testing.T) {
	seen := make(map[Action]int)
	for _, rule := range DefaultRules() {
		if rule.Enabled {
			seen[rule.Action]++
		}
		assert.True(t, IsValidAction(rule.Action), "rule %s uses unknown action", rule.ID)
	}
	for action, count := range seen {
		assert.Equalf(t, 1, count, "action %s has %d enabled rules", action, count)
	}

	_, hasManual := seen[ActionManualAdjustment]
	assert.False(t, hasManual, "manual adjustments bypass rules by design")
}
