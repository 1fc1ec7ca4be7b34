package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

type fakeSender struct {
	calls []string // channels attempted, in order
	fail  map[string]error
}

func (f *fakeSender) Send(ctx context.Context, channel, recipient, message string) (SendResult, error) {
	f.calls = append(f.calls, channel)
	if err, ok := f.fail[channel]; ok {
		return SendResult{}, err
	}
	return SendResult{ProviderMessageID: "pm-" + channel}, nil
}

type fakeStore struct {
	created []*model.Notification
	sent    map[string]int
	failed  map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sent: map[string]int{}, failed: map[string]int{}}
}

func (f *fakeStore) Create(ctx context.Context, n *model.Notification) error {
	f.created = append(f.created, n)
	return nil
}
func (f *fakeStore) MarkSent(ctx context.Context, id string, attempts int, providerMessageID string) error {
	f.sent[id] = attempts
	return nil
}
func (f *fakeStore) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	f.failed[id] = attempts
	return nil
}

type fakeQuota struct {
	allowed bool
	calls   int
}

func (f *fakeQuota) Allow(ctx context.Context, tenantID uint64) (bool, error) {
	f.calls++
	return f.allowed, nil
}

type fakeRetries struct {
	enqueued []int
}

func (f *fakeRetries) EnqueueNotificationRetry(ctx context.Context, tenantID uint64, notificationID string, retryCount int) error {
	f.enqueued = append(f.enqueued, retryCount)
	return nil
}

type nopSink struct{}

func (nopSink) Record(ctx context.Context, actorType, action, resourceType string, resourceID uint64, oldValues, newValues map[string]interface{}) {
}

func testGateway(sender *fakeSender, store *fakeStore, quota *fakeQuota, retries *fakeRetries) *Gateway {
	return New(sender, TextRenderer{}, FixedClock{}, quota, store, retries, nopSink{},
		Config{TokenSecret: "s", TokenTTL: 15 * time.Minute, BaseURL: "https://book.example.com", MaxAttempts: 3},
		zerolog.Nop())
}

func email(v string) *string { return &v }

func testEntry() *model.WaitlistEntry {
	return &model.WaitlistEntry{
		ID: 1, TenantID: 9, CustomerName: "Dana", Phone: "+15550001111",
		Email: email("dana@example.com"), ServiceID: 7,
	}
}

func testSlot() *model.Slot {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &model.Slot{ID: 2, TenantID: 9, StaffID: 3, ServiceID: 7, StartAt: start, EndAt: start.Add(30 * time.Minute)}
}

func TestNotifyFirstChannelWins(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeStore()
	g := testGateway(sender, store, &fakeQuota{allowed: true}, &fakeRetries{})

	n, err := g.Notify(context.Background(), testEntry(), testSlot())
	if err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(sender.calls) != 1 || sender.calls[0] != model.ChannelSMS {
		t.Errorf("channels tried = %v, want [sms]", sender.calls)
	}
	if n.Status != model.NotificationSent || n.Channel != model.ChannelSMS {
		t.Errorf("notification = %+v, want sent over sms", n)
	}
	if len(store.created) != 1 {
		t.Errorf("created %d records, want 1", len(store.created))
	}
}

func TestNotifyFallsBackToNextChannel(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{model.ChannelSMS: errors.New("carrier down")}}
	store := newFakeStore()
	g := testGateway(sender, store, &fakeQuota{allowed: true}, &fakeRetries{})

	n, err := g.Notify(context.Background(), testEntry(), testSlot())
	if err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	want := []string{model.ChannelSMS, model.ChannelEmail}
	if len(sender.calls) != 2 || sender.calls[0] != want[0] || sender.calls[1] != want[1] {
		t.Errorf("channels tried = %v, want %v", sender.calls, want)
	}
	if n.Channel != model.ChannelEmail || n.Status != model.NotificationSent {
		t.Errorf("notification = %+v, want sent over email", n)
	}
}

func TestNotifyQuotaDeniedBeforeAnyExternalCall(t *testing.T) {
	sender := &fakeSender{}
	quota := &fakeQuota{allowed: false}
	retries := &fakeRetries{}
	g := testGateway(sender, newFakeStore(), quota, retries)

	_, err := g.Notify(context.Background(), testEntry(), testSlot())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Notify() error = %v, want %v", err, ErrRateLimited)
	}
	if len(sender.calls) != 0 {
		t.Errorf("sender called %d times despite quota denial", len(sender.calls))
	}
	if len(retries.enqueued) != 0 {
		t.Errorf("retry enqueued on quota denial")
	}
}

func TestNotifyTotalFailureRecordsAndEnqueuesRetry(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{
		model.ChannelSMS:   errors.New("carrier down"),
		model.ChannelEmail: errors.New("smtp down"),
	}}
	store := newFakeStore()
	retries := &fakeRetries{}
	g := testGateway(sender, store, &fakeQuota{allowed: true}, retries)

	n, err := g.Notify(context.Background(), testEntry(), testSlot())
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("Notify() error = %v, want %v", err, ErrSendFailed)
	}
	if n == nil || n.Status != model.NotificationFailed || n.Attempts != 1 {
		t.Fatalf("notification = %+v, want failed with 1 attempt", n)
	}
	if len(retries.enqueued) != 1 || retries.enqueued[0] != 1 {
		t.Errorf("retries enqueued = %v, want [1]", retries.enqueued)
	}
}

func TestRetrySuccess(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeStore()
	g := testGateway(sender, store, &fakeQuota{allowed: true}, &fakeRetries{})

	n := &model.Notification{ID: "n1", TenantID: 9, EntryID: 1, SlotID: 2,
		Channel: model.ChannelSMS, Recipient: "+15550001111",
		Status: model.NotificationFailed, Attempts: 1}
	if err := g.Retry(context.Background(), n, testEntry(), testSlot()); err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if store.sent["n1"] != 2 {
		t.Errorf("MarkSent attempts = %d, want 2", store.sent["n1"])
	}
}

func TestRetryCapIsTerminal(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{model.ChannelSMS: errors.New("still down")}}
	store := newFakeStore()
	retries := &fakeRetries{}
	g := testGateway(sender, store, &fakeQuota{allowed: true}, retries)

	// Second attempt fails and schedules a third.
	n := &model.Notification{ID: "n1", TenantID: 9, EntryID: 1, SlotID: 2,
		Channel: model.ChannelSMS, Recipient: "+15550001111",
		Status: model.NotificationFailed, Attempts: 1}
	if err := g.Retry(context.Background(), n, testEntry(), testSlot()); err == nil {
		t.Fatal("Retry() returned nil error for a failed send")
	}
	if len(retries.enqueued) != 1 {
		t.Fatalf("retries enqueued = %v, want one follow-up", retries.enqueued)
	}

	// Third attempt fails at the cap: terminal, nothing further enqueued.
	n.Attempts = 2
	err := g.Retry(context.Background(), n, testEntry(), testSlot())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Retry() error = %v, want %v", err, ErrRetryExhausted)
	}
	if len(retries.enqueued) != 1 {
		t.Errorf("retries enqueued past the cap: %v", retries.enqueued)
	}

	// Past the cap entirely: immediate terminal answer, no send attempt.
	sends := len(sender.calls)
	n.Attempts = 3
	if err := g.Retry(context.Background(), n, testEntry(), testSlot()); !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Retry() past cap error = %v, want %v", err, ErrRetryExhausted)
	}
	if len(sender.calls) != sends {
		t.Errorf("sender called past the retry cap")
	}
}

func TestRetryOnAlreadySentIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeStore()
	g := testGateway(sender, store, &fakeQuota{allowed: true}, &fakeRetries{})

	n := &model.Notification{ID: "n1", Status: model.NotificationSent, Attempts: 1,
		Channel: model.ChannelSMS, Recipient: "+15550001111"}
	if err := g.Retry(context.Background(), n, testEntry(), testSlot()); err != nil {
		t.Fatalf("Retry() on sent notification error: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Errorf("sender called for an already-sent notification")
	}
}
