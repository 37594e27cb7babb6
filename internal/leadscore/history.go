package leadscore

import "sync"

// historyLog is the global bounded audit feed across all contacts. It is a
// non-owning index over recent entries; per-contact rings plus the running
// totals remain the source of truth.
//
// The log has its own lock so global appends never contend with per-contact
// critical sections.
type historyLog struct {
	mu   sync.Mutex
	ring *ring[ScoreHistoryEntry]
}

func newHistoryLog(capacity int) *historyLog {
	return &historyLog{ring: newRing[ScoreHistoryEntry](capacity)}
}

// append adds an entry, evicting the oldest beyond capacity.
func (h *historyLog) append(entry ScoreHistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring.push(entry)
}

// recent returns up to limit entries, newest first. limit <= 0 returns all.
func (h *historyLog) recent(limit int) []ScoreHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.ring.len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ScoreHistoryEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.ring.at(i))
	}
	return out
}

// snapshot returns all entries, oldest first, for persistence.
func (h *historyLog) snapshot() []ScoreHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ring.items()
}
