// Package scheduler drives the periodic background work: the
// expired-hold sweep, the hourly priority-score refresh and the
// notification retention cleanup.  The sweep and cleanup go through
// the job queue so any worker instance can pick them up; the score
// refresh writes directly since it is a pure recomputation.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
)

// JobEnqueuer hands periodic jobs to the queue; *queue.Publisher
// satisfies it.
type JobEnqueuer interface {
	EnqueueSweep(ctx context.Context, tenantID *uint64) error
	EnqueueCleanup(ctx context.Context, retentionDays int) error
}

// ScoreStore lists and updates the cached priority scores;
// *repository.WaitlistRepo satisfies it.
type ScoreStore interface {
	ListActive(ctx context.Context, tenantID *uint64) ([]model.WaitlistEntry, error)
	UpdateScore(ctx context.Context, id uint64, score int) error
}

// Config sets the cadence of each periodic task.  Zero intervals get
// the defaults below.
type Config struct {
	SweepInterval   time.Duration // expired-hold sweep, default 1m
	RescoreInterval time.Duration // priority-score refresh, default 1h
	CleanupInterval time.Duration // notification pruning, default 24h
	RetentionDays   int           // notification retention, default 90
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.RescoreInterval <= 0 {
		c.RescoreInterval = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 24 * time.Hour
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	return c
}

// Scheduler owns the tickers.
type Scheduler struct {
	cfg    Config
	jobs   JobEnqueuer
	scores ScoreStore
	ranker *ranking.Engine
	log    zerolog.Logger
}

// New constructs a Scheduler.
func New(cfg Config, jobs JobEnqueuer, scores ScoreStore, ranker *ranking.Engine, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		jobs:   jobs,
		scores: scores,
		ranker: ranker,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is canceled, firing each task on its ticker.
// Every task failure is logged and retried on the next tick; one bad
// pass never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()
	rescore := time.NewTicker(s.cfg.RescoreInterval)
	defer rescore.Stop()
	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

	s.log.Info().
		Dur("sweep_interval", s.cfg.SweepInterval).
		Dur("rescore_interval", s.cfg.RescoreInterval).
		Dur("cleanup_interval", s.cfg.CleanupInterval).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			if err := s.jobs.EnqueueSweep(ctx, nil); err != nil {
				s.log.Error().Err(err).Msg("enqueue sweep failed")
			}
		case <-rescore.C:
			if err := s.RefreshScores(ctx); err != nil {
				s.log.Error().Err(err).Msg("score refresh failed")
			}
		case <-cleanup.C:
			if err := s.jobs.EnqueueCleanup(ctx, s.cfg.RetentionDays); err != nil {
				s.log.Error().Err(err).Msg("enqueue cleanup failed")
			}
		}
	}
}

// RefreshScores recomputes the cached priority score of every active
// entry.  The score drifts between runs only through the recency
// bonus, so hourly is plenty.  Entries whose score is unchanged are
// not written.
func (s *Scheduler) RefreshScores(ctx context.Context) error {
	entries, err := s.scores.ListActive(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	updated := 0
	for i := range entries {
		e := &entries[i]
		score := s.ranker.Score(e, now)
		if score == e.PriorityScore {
			continue
		}
		if err := s.scores.UpdateScore(ctx, e.ID, score); err != nil {
			s.log.Error().Err(err).Uint64("entry_id", e.ID).Msg("score update failed")
			continue
		}
		updated++
	}
	if updated > 0 {
		s.log.Info().Int("updated", updated).Int("active", len(entries)).Msg("priority scores refreshed")
	}
	return nil
}
