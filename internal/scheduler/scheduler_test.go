package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/notify"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/queue"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/service"
)

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) ProcessExpiredHolds(ctx context.Context, tenantID *uint64) (service.SweepResult, error) {
	f.calls++
	return service.SweepResult{Released: 1}, nil
}

type fakeFiller struct {
	slots []uint64
}

func (f *fakeFiller) Fill(ctx context.Context, tenantID, slotID uint64) (*service.FillResult, error) {
	f.slots = append(f.slots, slotID)
	return &service.FillResult{NotificationSent: true}, nil
}

type fakeExcluder struct {
	added []uint64 // entry IDs in call order
}

func (f *fakeExcluder) Add(ctx context.Context, slotID, entryID uint64) error {
	f.added = append(f.added, entryID)
	return nil
}

type fakeNotifications struct {
	n       *model.Notification
	deleted int64
	cutoff  time.Time
}

func (f *fakeNotifications) Get(ctx context.Context, tenantID uint64, id string) (*model.Notification, error) {
	return f.n, nil
}

func (f *fakeNotifications) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, nil
}

type fakeEntries struct {
	e *model.WaitlistEntry
}

func (f *fakeEntries) GetByID(ctx context.Context, tenantID, id uint64) (*model.WaitlistEntry, error) {
	return f.e, nil
}

type fakeSlots struct {
	s *model.Slot
}

func (f *fakeSlots) Get(ctx context.Context, tenantID, id uint64) (*model.Slot, error) {
	return f.s, nil
}

type fakeRetrier struct {
	calls int
	err   error
}

func (f *fakeRetrier) Retry(ctx context.Context, n *model.Notification, entry *model.WaitlistEntry, slot *model.Slot) error {
	f.calls++
	return f.err
}

func newTestWorker(sw *fakeSweeper, fi *fakeFiller, ex *fakeExcluder,
	nt *fakeNotifications, en *fakeEntries, sl *fakeSlots, re *fakeRetrier) *Worker {
	return NewWorker(sw, fi, ex, nt, en, sl, re, zerolog.Nop())
}

func liveOffer() (*model.Notification, *model.WaitlistEntry, *model.Slot) {
	entryID := uint64(5)
	exp := time.Now().UTC().Add(10 * time.Minute)
	return &model.Notification{ID: "n-1", TenantID: 1, EntryID: 5, SlotID: 1,
			Channel: model.ChannelSMS, Status: model.NotificationFailed, Attempts: 1},
		&model.WaitlistEntry{ID: 5, TenantID: 1, Status: model.EntryStatusNotified},
		&model.Slot{ID: 1, TenantID: 1, Status: model.SlotStatusHeld, HeldEntryID: &entryID, HoldExpiresAt: &exp}
}

func TestHandleCascadeExcludesBeforeFilling(t *testing.T) {
	ex := &fakeExcluder{}
	fi := &fakeFiller{}
	w := newTestWorker(&fakeSweeper{}, fi, ex, &fakeNotifications{}, &fakeEntries{}, &fakeSlots{}, &fakeRetrier{})

	job := queue.CascadeJob{TenantID: 1, SlotID: 7, PreviousEntryID: 6, Reason: queue.ReasonDeclined}
	if err := w.HandleCascade(context.Background(), job); err != nil {
		t.Fatalf("HandleCascade: %v", err)
	}
	if len(ex.added) != 1 || ex.added[0] != 6 {
		t.Fatalf("exclusions = %v, want entry 6 excluded", ex.added)
	}
	if len(fi.slots) != 1 || fi.slots[0] != 7 {
		t.Fatalf("fills = %v, want one fill for slot 7", fi.slots)
	}
}

func TestHandleSweep(t *testing.T) {
	sw := &fakeSweeper{}
	w := newTestWorker(sw, &fakeFiller{}, &fakeExcluder{}, &fakeNotifications{}, &fakeEntries{}, &fakeSlots{}, &fakeRetrier{})

	if err := w.HandleSweep(context.Background(), queue.ExpiredHoldSweepJob{}); err != nil {
		t.Fatalf("HandleSweep: %v", err)
	}
	if sw.calls != 1 {
		t.Fatalf("sweeper calls = %d, want 1", sw.calls)
	}
}

func TestHandleNotificationRetry(t *testing.T) {
	t.Run("live offer retries", func(t *testing.T) {
		n, e, s := liveOffer()
		re := &fakeRetrier{}
		w := newTestWorker(&fakeSweeper{}, &fakeFiller{}, &fakeExcluder{},
			&fakeNotifications{n: n}, &fakeEntries{e: e}, &fakeSlots{s: s}, re)

		job := queue.NotificationRetryJob{TenantID: 1, NotificationID: "n-1", RetryCount: 1}
		if err := w.HandleNotificationRetry(context.Background(), job); err != nil {
			t.Fatalf("HandleNotificationRetry: %v", err)
		}
		if re.calls != 1 {
			t.Fatalf("retrier calls = %d, want 1", re.calls)
		}
	})

	t.Run("stale offer is dropped", func(t *testing.T) {
		n, e, s := liveOffer()
		s.Status = model.SlotStatusBooked
		re := &fakeRetrier{}
		w := newTestWorker(&fakeSweeper{}, &fakeFiller{}, &fakeExcluder{},
			&fakeNotifications{n: n}, &fakeEntries{e: e}, &fakeSlots{s: s}, re)

		job := queue.NotificationRetryJob{TenantID: 1, NotificationID: "n-1", RetryCount: 1}
		if err := w.HandleNotificationRetry(context.Background(), job); err != nil {
			t.Fatalf("HandleNotificationRetry: %v", err)
		}
		if re.calls != 0 {
			t.Fatalf("retrier calls = %d, want 0 for a dead offer", re.calls)
		}
	})

	t.Run("exhausted budget ends the chain quietly", func(t *testing.T) {
		n, e, s := liveOffer()
		re := &fakeRetrier{err: notify.ErrRetryExhausted}
		w := newTestWorker(&fakeSweeper{}, &fakeFiller{}, &fakeExcluder{},
			&fakeNotifications{n: n}, &fakeEntries{e: e}, &fakeSlots{s: s}, re)

		job := queue.NotificationRetryJob{TenantID: 1, NotificationID: "n-1", RetryCount: 3}
		if err := w.HandleNotificationRetry(context.Background(), job); err != nil {
			t.Fatalf("HandleNotificationRetry: %v, want nil so the job is acked", err)
		}
	})
}

func TestHandleCleanupDefaultsRetention(t *testing.T) {
	nt := &fakeNotifications{deleted: 3}
	w := newTestWorker(&fakeSweeper{}, &fakeFiller{}, &fakeExcluder{}, nt, &fakeEntries{}, &fakeSlots{}, &fakeRetrier{})

	if err := w.HandleCleanup(context.Background(), queue.CleanupJob{}); err != nil {
		t.Fatalf("HandleCleanup: %v", err)
	}
	want := time.Now().UTC().AddDate(0, 0, -90)
	if diff := nt.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %v, want about 90 days back", nt.cutoff)
	}
}

type fakeScores struct {
	entries []model.WaitlistEntry
	updated map[uint64]int
}

func (f *fakeScores) ListActive(ctx context.Context, tenantID *uint64) ([]model.WaitlistEntry, error) {
	return f.entries, nil
}

func (f *fakeScores) UpdateScore(ctx context.Context, id uint64, score int) error {
	if f.updated == nil {
		f.updated = make(map[uint64]int)
	}
	f.updated[id] = score
	return nil
}

func TestRefreshScoresWritesOnlyChangedEntries(t *testing.T) {
	ranker := ranking.New(ranking.DefaultWeights())
	now := time.Now().UTC()

	stale := model.WaitlistEntry{ID: 1, ServiceID: 100, Status: model.EntryStatusActive,
		CreatedAt: now.Add(-8 * 24 * time.Hour), PriorityScore: 45}
	fresh := model.WaitlistEntry{ID: 2, ServiceID: 100, Status: model.EntryStatusActive,
		CreatedAt: now, PriorityScore: ranker.Score(&model.WaitlistEntry{ID: 2, ServiceID: 100, CreatedAt: now}, now)}

	scores := &fakeScores{entries: []model.WaitlistEntry{stale, fresh}}
	s := New(Config{}, nil, scores, ranker, zerolog.Nop())

	if err := s.RefreshScores(context.Background()); err != nil {
		t.Fatalf("RefreshScores: %v", err)
	}
	if _, ok := scores.updated[1]; !ok {
		t.Fatal("stale entry score not rewritten")
	}
	if _, ok := scores.updated[2]; ok {
		t.Fatal("unchanged entry score rewritten")
	}
	if got, want := scores.updated[1], ranker.Score(&stale, now); got != want {
		t.Fatalf("recomputed score = %d, want %d", got, want)
	}
}
