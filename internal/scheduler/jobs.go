package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/notify"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/queue"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/service"
)

// Sweeper runs the expired-hold sweep; *service.CascadeService
// satisfies it.
type Sweeper interface {
	ProcessExpiredHolds(ctx context.Context, tenantID *uint64) (service.SweepResult, error)
}

// Filler runs one cascade step for a slot; *service.CascadeService
// satisfies it.
type Filler interface {
	Fill(ctx context.Context, tenantID, slotID uint64) (*service.FillResult, error)
}

// Excluder records a tried candidate for a slot occurrence;
// *service.ExclusionStore satisfies it.
type Excluder interface {
	Add(ctx context.Context, slotID, entryID uint64) error
}

// NotificationSource loads notifications for the retry job;
// *repository.NotificationRepo satisfies it.
type NotificationSource interface {
	Get(ctx context.Context, tenantID uint64, id string) (*model.Notification, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EntrySource loads the entry a retried notification refers to;
// *repository.WaitlistRepo satisfies it.
type EntrySource interface {
	GetByID(ctx context.Context, tenantID, id uint64) (*model.WaitlistEntry, error)
}

// SlotSource loads the slot a retried notification refers to;
// *repository.SlotRepo satisfies it.
type SlotSource interface {
	Get(ctx context.Context, tenantID, id uint64) (*model.Slot, error)
}

// Retrier re-attempts delivery of a failed notification;
// *notify.Gateway satisfies it.
type Retrier interface {
	Retry(ctx context.Context, n *model.Notification, entry *model.WaitlistEntry, slot *model.Slot) error
}

// Worker executes queued jobs.  Every handler is idempotent: jobs are
// delivered at least once, so a redelivered job must find its work
// already done and do nothing.
type Worker struct {
	sweeper       Sweeper
	filler        Filler
	exclusions    Excluder
	notifications NotificationSource
	entries       EntrySource
	slots         SlotSource
	retrier       Retrier
	log           zerolog.Logger
}

// NewWorker constructs the job worker.
func NewWorker(sweeper Sweeper, filler Filler, exclusions Excluder,
	notifications NotificationSource, entries EntrySource, slots SlotSource,
	retrier Retrier, log zerolog.Logger) *Worker {
	return &Worker{
		sweeper:       sweeper,
		filler:        filler,
		exclusions:    exclusions,
		notifications: notifications,
		entries:       entries,
		slots:         slots,
		retrier:       retrier,
		log:           log.With().Str("component", "job-worker").Logger(),
	}
}

// HandleSweep releases expired holds and cascades each reclaimed slot.
// The guarded release makes a redelivered sweep a no-op.
func (w *Worker) HandleSweep(ctx context.Context, job queue.ExpiredHoldSweepJob) error {
	result, err := w.sweeper.ProcessExpiredHolds(ctx, job.TenantID)
	if err != nil {
		return err
	}
	w.log.Debug().Int("released", result.Released).
		Int("cascade_notifications", result.CascadeNotifications).Msg("sweep job done")
	return nil
}

// HandleCascade excludes the candidate who just dropped out and runs
// one fill step for the slot.  Redelivery is harmless: the exclusion
// add is a set insert and Fill on a non-open slot does nothing.
func (w *Worker) HandleCascade(ctx context.Context, job queue.CascadeJob) error {
	if err := w.exclusions.Add(ctx, job.SlotID, job.PreviousEntryID); err != nil {
		return err
	}
	result, err := w.filler.Fill(ctx, job.TenantID, job.SlotID)
	if err != nil {
		return err
	}
	w.log.Debug().Uint64("slot_id", job.SlotID).Str("reason", string(job.Reason)).
		Bool("notification_sent", result.NotificationSent).Msg("cascade job done")
	return nil
}

// HandleNotificationRetry re-attempts a failed offer delivery.  A
// notification that got through in the meantime, a gone slot or an
// exhausted attempt budget all end the retry chain without error.
func (w *Worker) HandleNotificationRetry(ctx context.Context, job queue.NotificationRetryJob) error {
	n, err := w.notifications.Get(ctx, job.TenantID, job.NotificationID)
	if err != nil {
		return err
	}
	entry, err := w.entries.GetByID(ctx, job.TenantID, n.EntryID)
	if err != nil {
		return err
	}
	slot, err := w.slots.Get(ctx, job.TenantID, n.SlotID)
	if err != nil {
		return err
	}
	if slot.Status != model.SlotStatusHeld || entry.Status != model.EntryStatusNotified {
		// The offer this message carried no longer stands.
		w.log.Debug().Str("notification_id", n.ID).Msg("retry dropped, offer no longer live")
		return nil
	}
	if err := w.retrier.Retry(ctx, n, entry, slot); err != nil {
		if errors.Is(err, notify.ErrRetryExhausted) {
			w.log.Warn().Str("notification_id", n.ID).Msg("notification retries exhausted")
			return nil
		}
		if errors.Is(err, notify.ErrSendFailed) {
			// The gateway already queued the next attempt.
			return nil
		}
		return err
	}
	return nil
}

// HandleCleanup prunes notification rows past the retention window.
func (w *Worker) HandleCleanup(ctx context.Context, job queue.CleanupJob) error {
	days := job.RetentionDays
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := w.notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("old notifications pruned")
	}
	return nil
}
