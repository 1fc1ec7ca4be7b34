package config

import "github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"

// LoadRankingWeights returns the scoring weights, starting from the
// defaults and overriding each component from the environment.  The
// weights are tenant-global; per-tenant tuning is a schema change, not
// a config one.
func LoadRankingWeights() ranking.Weights {
	w := ranking.DefaultWeights()
	w.Base = envInt("RANK_WEIGHT_BASE", w.Base)
	w.VIP = envInt("RANK_WEIGHT_VIP", w.VIP)
	w.Service = envInt("RANK_WEIGHT_SERVICE", w.Service)
	w.Staff = envInt("RANK_WEIGHT_STAFF", w.Staff)
	w.Window = envInt("RANK_WEIGHT_WINDOW", w.Window)
	w.RecencyPerWeek = envInt("RANK_WEIGHT_RECENCY_PER_WEEK", w.RecencyPerWeek)
	w.RecencyCap = envInt("RANK_WEIGHT_RECENCY_CAP", w.RecencyCap)
	return w
}
