package matching

import (
	"context"
	"testing"
	"time"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
)

type fakeEntrySource struct {
	entries []model.WaitlistEntry
}

func (f *fakeEntrySource) ActiveByService(ctx context.Context, tenantID, serviceID uint64) ([]model.WaitlistEntry, error) {
	out := make([]model.WaitlistEntry, 0)
	for _, e := range f.entries {
		if e.TenantID == tenantID && e.ServiceID == serviceID && e.Status == model.EntryStatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func staffID(v uint64) *uint64 { return &v }

func testSlot(start time.Time) *model.Slot {
	return &model.Slot{
		ID:        100,
		TenantID:  1,
		StaffID:   3,
		ServiceID: 7,
		StartAt:   start,
		EndAt:     start.Add(45 * time.Minute),
		Status:    model.SlotStatusOpen,
	}
}

func TestEligible(t *testing.T) {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	slot := testSlot(start)

	base := model.WaitlistEntry{
		TenantID:    1,
		ServiceID:   7,
		WindowStart: start.Add(-time.Hour),
		WindowEnd:   start.Add(time.Hour),
		Status:      model.EntryStatusActive,
	}

	tests := []struct {
		name   string
		mutate func(*model.WaitlistEntry)
		want   bool
	}{
		{"active matching entry", func(e *model.WaitlistEntry) {}, true},
		{"notified entry is not eligible", func(e *model.WaitlistEntry) { e.Status = model.EntryStatusNotified }, false},
		{"removed entry is not eligible", func(e *model.WaitlistEntry) { e.Status = model.EntryStatusRemoved }, false},
		{"different service", func(e *model.WaitlistEntry) { e.ServiceID = 8 }, false},
		{"no staff preference", func(e *model.WaitlistEntry) { e.StaffID = nil }, true},
		{"exact staff preference", func(e *model.WaitlistEntry) { e.StaffID = staffID(3) }, true},
		{"different staff preference", func(e *model.WaitlistEntry) { e.StaffID = staffID(4) }, false},
		{"slot before window", func(e *model.WaitlistEntry) { e.WindowStart = start.Add(time.Minute) }, false},
		{"slot at window start", func(e *model.WaitlistEntry) { e.WindowStart = start }, true},
		{"slot at window end is excluded", func(e *model.WaitlistEntry) { e.WindowEnd = start }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			if got := Eligible(&e, slot); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindCandidatesOrderingAndExclusion(t *testing.T) {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	slot := testSlot(start)
	now := time.Now().UTC()

	src := &fakeEntrySource{entries: []model.WaitlistEntry{
		{ID: 1, TenantID: 1, ServiceID: 7, Status: model.EntryStatusActive,
			WindowStart: start.Add(-time.Hour), WindowEnd: start.Add(time.Hour), CreatedAt: now.Add(-time.Hour)},
		{ID: 2, TenantID: 1, ServiceID: 7, VIP: true, Status: model.EntryStatusActive,
			WindowStart: start.Add(-time.Hour), WindowEnd: start.Add(time.Hour), CreatedAt: now.Add(-30 * time.Minute)},
		{ID: 3, TenantID: 1, ServiceID: 7, StaffID: staffID(4), Status: model.EntryStatusActive,
			WindowStart: start.Add(-time.Hour), WindowEnd: start.Add(time.Hour), CreatedAt: now},
	}}
	m := New(src, ranking.New(ranking.DefaultWeights()))

	cands, err := m.FindCandidates(context.Background(), slot, nil)
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	// Entry 3 prefers a different staff member; entry 2 is VIP and
	// outranks entry 1.
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if cands[0].Entry.ID != 2 || cands[1].Entry.ID != 1 {
		t.Errorf("order = [%d, %d], want [2, 1]", cands[0].Entry.ID, cands[1].Entry.ID)
	}

	// Excluding the winner promotes the runner-up.
	exclude := map[uint64]struct{}{2: {}}
	cands, err = m.FindCandidates(context.Background(), slot, exclude)
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	if len(cands) != 1 || cands[0].Entry.ID != 1 {
		t.Fatalf("after exclusion got %+v, want only entry 1", cands)
	}
}

func TestFindCandidatesEmptyPoolIsNotAnError(t *testing.T) {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	m := New(&fakeEntrySource{}, ranking.New(ranking.DefaultWeights()))

	cands, err := m.FindCandidates(context.Background(), testSlot(start), nil)
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("got %d candidates, want 0", len(cands))
	}
}

func TestMatchScore(t *testing.T) {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	slot := testSlot(start)

	exact := model.WaitlistEntry{StaffID: staffID(3), WindowStart: start.Add(-time.Hour), WindowEnd: start.Add(2 * time.Hour)}
	any := model.WaitlistEntry{WindowStart: start, WindowEnd: start.Add(10 * time.Minute)}

	if got := matchScore(&exact, slot); got != matchExactStaff+matchFullWindow {
		t.Errorf("exact staff full window score = %d, want %d", got, matchExactStaff+matchFullWindow)
	}
	// Slot end falls outside the entry window, so no full-window bonus.
	if got := matchScore(&any, slot); got != matchAnyStaff {
		t.Errorf("any staff partial window score = %d, want %d", got, matchAnyStaff)
	}
}
