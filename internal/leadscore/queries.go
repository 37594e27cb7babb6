package leadscore

import "sort"

// GetScore returns a copy of the contact's lead score, or false if the
// contact has no score yet.
func (e *Engine) GetScore(contactID string) (*LeadScore, bool) {
	e.mu.RLock()
	c := e.contacts[contactID]
	e.mu.RUnlock()
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	score := e.copyScoreLocked(c)
	c.mu.Unlock()
	return &score, true
}

// GetAllScores returns copies of every tracked lead score, in no particular
// order.
func (e *Engine) GetAllScores() []*LeadScore {
	e.mu.RLock()
	states := make([]*contactState, 0, len(e.contacts))
	for _, c := range e.contacts {
		states = append(states, c)
	}
	e.mu.RUnlock()

	out := make([]*LeadScore, 0, len(states))
	for _, c := range states {
		c.mu.Lock()
		score := e.copyScoreLocked(c)
		c.mu.Unlock()
		out = append(out, &score)
	}
	return out
}

// GetHotLeads returns up to limit leads sorted by total score descending.
// Ties break on contact ID for deterministic output. limit <= 0 returns all.
func (e *Engine) GetHotLeads(limit int) []*LeadScore {
	scores := e.GetAllScores()
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].ContactID < scores[j].ContactID
	})
	if limit > 0 && limit < len(scores) {
		scores = scores[:limit]
	}
	return scores
}

// GetLeadsByHeatLevel returns copies of every lead currently classified at
// the given heat level.
func (e *Engine) GetLeadsByHeatLevel(level HeatLevel) []*LeadScore {
	all := e.GetAllScores()
	out := make([]*LeadScore, 0, len(all))
	for _, s := range all {
		if s.HeatLevel == level {
			out = append(out, s)
		}
	}
	return out
}

// History returns up to limit entries from the global audit feed, newest
// first. limit <= 0 returns everything retained.
func (e *Engine) History(limit int) []ScoreHistoryEntry {
	return e.global.recent(limit)
}
