package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/matching"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/queue"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL repositories,
// mirroring their guarded-update semantics.  The services run against
// it through a txRunner that hands every callback a nil transaction,
// which memStore ignores.
type memStore struct {
	mu            sync.Mutex
	slots         map[uint64]*model.Slot
	entries       map[uint64]*model.WaitlistEntry
	bookings      map[uint64]*model.Booking // keyed by slot ID, mirrors the unique constraint
	nextBookingID uint64
}

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[uint64]*model.Slot),
		entries:  make(map[uint64]*model.WaitlistEntry),
		bookings: make(map[uint64]*model.Booking),
	}
}

func memTxRunner() txRunner {
	return func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		return fn(nil)
	}
}

func (m *memStore) putSlot(s model.Slot) { m.slots[s.ID] = &s }

func (m *memStore) putEntry(e model.WaitlistEntry) { m.entries[e.ID] = &e }

func (m *memStore) slot(id uint64) model.Slot { return *m.slots[id] }

func (m *memStore) entry(id uint64) model.WaitlistEntry { return *m.entries[id] }

// SlotStore

func (m *memStore) Create(ctx context.Context, s *model.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = uint64(len(m.slots) + 1)
	}
	s.Status = model.SlotStatusOpen
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, tenantID, id uint64) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || s.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.Slot, error) {
	return m.Get(ctx, tenantID, id)
}

func (m *memStore) HoldTx(ctx context.Context, tx *sql.Tx, slotID, entryID uint64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok || s.Status != model.SlotStatusOpen {
		return repository.ErrSlotNotOpen
	}
	id, exp := entryID, expiresAt
	s.Status = model.SlotStatusHeld
	s.HeldEntryID = &id
	s.HoldExpiresAt = &exp
	return nil
}

func (m *memStore) BookTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	holdLive := s.Status == model.SlotStatusHeld && s.HoldExpiresAt != nil && s.HoldExpiresAt.After(now)
	if s.Status != model.SlotStatusOpen && !holdLive {
		return false, nil
	}
	s.Status = model.SlotStatusBooked
	s.HeldEntryID = nil
	s.HoldExpiresAt = nil
	return true, nil
}

func (m *memStore) ReleaseHoldTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok || s.Status != model.SlotStatusHeld {
		return false, nil
	}
	s.Status = model.SlotStatusOpen
	s.HeldEntryID = nil
	s.HoldExpiresAt = nil
	return true, nil
}

func (m *memStore) ReopenTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok || (s.Status != model.SlotStatusCanceled && s.Status != model.SlotStatusHeld) {
		return false, nil
	}
	s.Status = model.SlotStatusOpen
	s.HeldEntryID = nil
	s.HoldExpiresAt = nil
	return true, nil
}

func (m *memStore) CancelTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok || s.Status == model.SlotStatusBooked {
		return false, nil
	}
	s.Status = model.SlotStatusCanceled
	s.HeldEntryID = nil
	s.HoldExpiresAt = nil
	return true, nil
}

func (m *memStore) ExpiredHeldTx(ctx context.Context, tx *sql.Tx, tenantID *uint64) ([]model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []model.Slot
	for _, s := range m.slots {
		if tenantID != nil && s.TenantID != *tenantID {
			continue
		}
		if s.Status == model.SlotStatusHeld && s.HoldExpired(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

// EntryStore

func (m *memStore) GetByID(ctx context.Context, tenantID, id uint64) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) GetByIDTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.WaitlistEntry, error) {
	return m.GetByID(ctx, tenantID, id)
}

func (m *memStore) MarkNotifiedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Status != model.EntryStatusActive {
		return false, nil
	}
	now := time.Now().UTC()
	e.Status = model.EntryStatusNotified
	e.NotifiedAt = &now
	return true, nil
}

func (m *memStore) MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || (e.Status != model.EntryStatusActive && e.Status != model.EntryStatusNotified) {
		return false, nil
	}
	e.Status = model.EntryStatusConfirmed
	return true, nil
}

func (m *memStore) MarkRemovedTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || (e.Status != model.EntryStatusActive && e.Status != model.EntryStatusNotified) {
		return false, nil
	}
	e.Status = model.EntryStatusRemoved
	e.RemovalReason = &reason
	return true, nil
}

func (m *memStore) MarkActiveTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Status != model.EntryStatusNotified {
		return false, nil
	}
	e.Status = model.EntryStatusActive
	e.NotifiedAt = nil
	return true, nil
}

// ActiveByService lets the real matching engine run against the fake.
func (m *memStore) ActiveByService(ctx context.Context, tenantID, serviceID uint64) ([]model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WaitlistEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.ServiceID == serviceID && e.Status == model.EntryStatusActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

// BookingStore

func (m *memStore) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bookings[b.SlotID]; exists {
		return repository.ErrSlotAlreadyBooked
	}
	m.nextBookingID++
	b.ID = m.nextBookingID
	b.ConfirmedAt = time.Now().UTC()
	cp := *b
	m.bookings[b.SlotID] = &cp
	return nil
}

type nopSink struct{}

func (nopSink) Record(ctx context.Context, actorType, action, resourceType string, resourceID uint64, oldValues, newValues map[string]interface{}) {
}

type notifyCall struct {
	entryID uint64
	slotID  uint64
}

type fakeNotifier struct {
	calls []notifyCall
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, entry *model.WaitlistEntry, slot *model.Slot) (*model.Notification, error) {
	f.calls = append(f.calls, notifyCall{entryID: entry.ID, slotID: slot.ID})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Notification{ID: "n-test", EntryID: entry.ID, SlotID: slot.ID}, nil
}

type fakeEnqueuer struct {
	jobs []queue.CascadeJob
	err  error
}

func (f *fakeEnqueuer) EnqueueCascade(ctx context.Context, job queue.CascadeJob) error {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return f.err
	}
	return nil
}

const testTokenSecret = "service-test-secret"

func newTestSlotService(st *memStore, holdTTL time.Duration) *SlotService {
	return &SlotService{
		txRun:    memTxRunner(),
		slots:    st,
		entries:  st,
		bookings: st,
		sink:     nopSink{},
		holdTTL:  holdTTL,
		log:      zerolog.Nop(),
	}
}

func newTestCascadeService(st *memStore, notifier *fakeNotifier, enq *fakeEnqueuer, holdTTL time.Duration) *CascadeService {
	matcher := matching.New(st, ranking.New(ranking.DefaultWeights()))
	return &CascadeService{
		txRun:       memTxRunner(),
		slots:       st,
		entries:     st,
		matcher:     matcher,
		gateway:     notifier,
		exclusions:  NewExclusionStore(nil, time.Hour),
		slotSvc:     newTestSlotService(st, holdTTL),
		jobs:        enq,
		sink:        nopSink{},
		tokenSecret: testTokenSecret,
		log:         zerolog.Nop(),
	}
}
