// Package ranking computes waitlist priority scores and orders
// candidates.  Scoring is a pure function of entry attributes and
// elapsed wait time: the same entry at the same instant always yields
// the same score, so the cached priority_score column can be rebuilt
// at any time and never drifts the way an incremented counter would.
package ranking

import (
	"sort"
	"time"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

// Weights holds the tunable scoring policy.  Operators adjust these to
// change fairness behavior; none of them is hard-coded in the engine.
type Weights struct {
	Base           int // every live entry starts here
	VIP            int // added for VIP entries
	Service        int // added for a qualifying service request
	Staff          int // added when a specific staff member is requested
	Window         int // fixed time-window component
	RecencyPerWeek int // added per full week waited
	RecencyCap     int // upper bound on the recency bonus
}

// DefaultWeights returns the stock policy.  The recency bonus is
// deliberately small and capped so long-waiting entries rise without
// permanently starving newer VIP entries.
func DefaultWeights() Weights {
	return Weights{
		Base:           20,
		VIP:            15,
		Service:        15,
		Staff:          10,
		Window:         10,
		RecencyPerWeek: 1,
		RecencyCap:     8,
	}
}

// Engine scores and orders waitlist entries.
type Engine struct {
	w Weights
}

// New returns an Engine using the given weights.
func New(w Weights) *Engine { return &Engine{w: w} }

// Score computes the priority score for an entry at the given instant.
// Service is mandatory on every entry, so the service component is
// effectively always present; it is still modeled as a weight so the
// policy stays tunable.
func (e *Engine) Score(entry *model.WaitlistEntry, now time.Time) int {
	score := e.w.Base
	if entry.VIP {
		score += e.w.VIP
	}
	if entry.ServiceID != 0 {
		score += e.w.Service
	}
	if entry.StaffID != nil {
		score += e.w.Staff
	}
	score += e.w.Window
	score += e.recencyBonus(entry.CreatedAt, now)
	return score
}

func (e *Engine) recencyBonus(createdAt, now time.Time) int {
	waited := now.Sub(createdAt)
	if waited <= 0 {
		return 0
	}
	weeks := int(waited / (7 * 24 * time.Hour))
	bonus := weeks * e.w.RecencyPerWeek
	if bonus > e.w.RecencyCap {
		bonus = e.w.RecencyCap
	}
	return bonus
}

// Rank orders entries by score descending, breaking ties by created_at
// ascending so equal-priority entries are served strictly first come,
// first served.  Scores are computed once up front and the sort is
// stable, keeping the tie-break exact.
func (e *Engine) Rank(entries []model.WaitlistEntry, now time.Time) []model.WaitlistEntry {
	type scored struct {
		entry model.WaitlistEntry
		score int
	}
	ranked := make([]scored, 0, len(entries))
	for _, en := range entries {
		ranked = append(ranked, scored{entry: en, score: e.Score(&en, now)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.CreatedAt.Before(ranked[j].entry.CreatedAt)
	})
	out := make([]model.WaitlistEntry, 0, len(ranked))
	for _, s := range ranked {
		en := s.entry
		en.PriorityScore = s.score
		out = append(out, en)
	}
	return out
}
