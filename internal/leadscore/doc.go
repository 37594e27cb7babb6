// Package leadscore converts discrete customer-interaction events into a
// bounded numeric score, a discrete heat classification, and a per-category
// breakdown used to prioritize sales outreach.
//
// # Core Concepts
//
// Every recognized interaction (message opened, price inquiry, complaint,
// inactivity, ...) is an Action. A configurable ScoringRule maps an action to
// a signed point delta plus optional rate limits (per-day cap, cooldown).
// Accepted events append a ScoreHistoryEntry to the contact's bounded history
// ring and to a global audit ring, then the contact's LeadScore is recomputed:
//   - TotalScore: running sum of applied points, clamped to [-100, 999]
//   - HeatLevel: cold/warm/hot/burning, classified from the clamped total
//   - Category scores (behavior/engagement/intent/recency): derived display
//     metrics recomputed from a fixed window of recent history
//
// TotalScore and the history ring are authoritative; category scores are
// never persisted ground truth.
//
// # Concurrency
//
// The Engine serializes all mutations for a single contact under that
// contact's lock, so two concurrent events cannot both pass a rate-limit
// gate meant to admit one. Different contacts proceed in parallel. Reads
// return deep copies, never live state.
//
// # Persistence
//
// Storage is an injected Port. Loads happen once at construction (falling
// back to defaults on failure); saves are coalesced and retried by a
// background saver so producers never block on I/O.
package leadscore
