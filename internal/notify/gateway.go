// Package notify is the gateway between the cascade engine and the
// external message providers.  It owns channel selection (an explicit
// ordered list tried synchronously, returning on the first success),
// the per-tenant send quota, and retry bookkeeping; the wire mechanics
// of actually delivering SMS or email live behind the Sender contract.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/audit"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/token"
)

var (
	// ErrRateLimited is returned when the tenant's notification quota
	// is exhausted.  No external call has been made; the condition is
	// recoverable and the candidate stays held until the sweep or
	// cascade retries.
	ErrRateLimited = errors.New("notification rate limit exceeded")

	// ErrSendFailed is returned when every channel failed.  A failed
	// notification record has been written and a retry enqueued.
	ErrSendFailed = errors.New("all notification channels failed")

	// ErrRetryExhausted is returned when a retry is attempted past the
	// maximum attempt count.  This is terminal for the notification,
	// not for the candidate.
	ErrRetryExhausted = errors.New("notification retries exhausted")
)

// NotificationStore is the bookkeeping surface the gateway needs;
// *repository.NotificationRepo satisfies it.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	MarkSent(ctx context.Context, id string, attempts int, providerMessageID string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
}

// RetryEnqueuer schedules a later re-send of a failed notification.
// *queue.Publisher satisfies it.
type RetryEnqueuer interface {
	EnqueueNotificationRetry(ctx context.Context, tenantID uint64, notificationID string, retryCount int) error
}

// Config carries the gateway's policy knobs.
type Config struct {
	TokenSecret string
	TokenTTL    time.Duration // confirmation token lifetime
	BaseURL     string        // public base for confirm/decline links
	MaxAttempts int           // total send attempts before terminal failure
}

// Gateway dispatches slot-offer notifications.
type Gateway struct {
	sender   Sender
	renderer TemplateRenderer
	clock    TenantClock
	quota    QuotaLimiter
	store    NotificationStore
	retries  RetryEnqueuer
	sink     audit.Sink
	cfg      Config
	log      zerolog.Logger
}

// New constructs a Gateway.  retries may be nil, in which case failed
// sends stay failed until the next cascade reaches the candidate.
func New(sender Sender, renderer TemplateRenderer, clock TenantClock, quota QuotaLimiter,
	store NotificationStore, retries RetryEnqueuer, sink audit.Sink, cfg Config, log zerolog.Logger) *Gateway {
	return &Gateway{
		sender:   sender,
		renderer: renderer,
		clock:    clock,
		quota:    quota,
		store:    store,
		retries:  retries,
		sink:     sink,
		cfg:      cfg,
		log:      log.With().Str("component", "notify").Logger(),
	}
}

// Notify offers a slot to a candidate: quota check, token issue,
// render, then each channel in order until one succeeds.  The written
// notification record reflects the final outcome.  On total failure a
// retry job is enqueued and ErrSendFailed returned alongside the
// record.
func (g *Gateway) Notify(ctx context.Context, entry *model.WaitlistEntry, slot *model.Slot) (*model.Notification, error) {
	allowed, err := g.quota.Allow(ctx, entry.TenantID)
	if err != nil {
		// A broken limiter must not silence the waitlist; log and send.
		g.log.Warn().Err(err).Uint64("tenant_id", entry.TenantID).Msg("quota check failed, allowing send")
		allowed = true
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	payload, err := g.buildPayload(ctx, entry, slot)
	if err != nil {
		return nil, err
	}

	channels := channelsFor(entry)
	var lastErr error
	for _, ch := range channels {
		msg, rerr := g.renderer.Render(ctx, ch.channel, payload)
		if rerr != nil {
			lastErr = fmt.Errorf("render %s: %w", ch.channel, rerr)
			continue
		}
		res, serr := g.sender.Send(ctx, ch.channel, ch.recipient, msg)
		if serr != nil {
			lastErr = fmt.Errorf("send %s: %w", ch.channel, serr)
			g.log.Warn().Err(serr).Str("channel", ch.channel).Uint64("entry_id", entry.ID).Msg("channel send failed")
			continue
		}
		n := g.record(ctx, entry, slot, ch, model.NotificationSent, 1, "", res.ProviderMessageID)
		g.sink.Record(ctx, "system", "notification_sent", "waitlist_entry", entry.ID, nil,
			map[string]interface{}{"slot_id": slot.ID, "channel": ch.channel})
		return n, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no reachable channel for entry")
	}
	n := g.record(ctx, entry, slot, channels[0], model.NotificationFailed, 1, lastErr.Error(), "")
	g.enqueueRetry(ctx, n, 1)
	return n, ErrSendFailed
}

// Retry re-attempts delivery of a failed notification.  The attempt
// count on the record is authoritative; retryCount from the job is
// only used for backoff scheduling.  Exceeding the cap is terminal.
func (g *Gateway) Retry(ctx context.Context, n *model.Notification, entry *model.WaitlistEntry, slot *model.Slot) error {
	if n.Status == model.NotificationSent {
		return nil // duplicate delivery of the retry job
	}
	if n.Attempts >= g.cfg.MaxAttempts {
		return ErrRetryExhausted
	}
	payload, err := g.buildPayload(ctx, entry, slot)
	if err != nil {
		return err
	}
	attempts := n.Attempts + 1
	msg, err := g.renderer.Render(ctx, n.Channel, payload)
	if err == nil {
		var res SendResult
		res, err = g.sender.Send(ctx, n.Channel, n.Recipient, msg)
		if err == nil {
			if merr := g.store.MarkSent(ctx, n.ID, attempts, res.ProviderMessageID); merr != nil {
				g.log.Error().Err(merr).Str("notification_id", n.ID).Msg("mark sent failed")
			}
			return nil
		}
	}
	if merr := g.store.MarkFailed(ctx, n.ID, attempts, err.Error()); merr != nil {
		g.log.Error().Err(merr).Str("notification_id", n.ID).Msg("mark failed failed")
	}
	if attempts >= g.cfg.MaxAttempts {
		g.log.Warn().Str("notification_id", n.ID).Int("attempts", attempts).Msg("notification retries exhausted")
		return ErrRetryExhausted
	}
	g.enqueueRetry(ctx, n, attempts)
	return fmt.Errorf("retry attempt %d: %w", attempts, err)
}

func (g *Gateway) buildPayload(ctx context.Context, entry *model.WaitlistEntry, slot *model.Slot) (Payload, error) {
	loc, err := g.clock.Location(ctx, entry.TenantID)
	if err != nil || loc == nil {
		loc = time.UTC
	}
	confirm, err := token.Issue(g.cfg.TokenSecret, token.Claims{
		EntryID: entry.ID, SlotID: slot.ID, TenantID: entry.TenantID, Action: token.ActionConfirm,
	}, g.cfg.TokenTTL)
	if err != nil {
		return Payload{}, fmt.Errorf("issue confirm token: %w", err)
	}
	decline, err := token.Issue(g.cfg.TokenSecret, token.Claims{
		EntryID: entry.ID, SlotID: slot.ID, TenantID: entry.TenantID, Action: token.ActionDecline,
	}, g.cfg.TokenTTL)
	if err != nil {
		return Payload{}, fmt.Errorf("issue decline token: %w", err)
	}
	return Payload{
		CustomerName: entry.CustomerName,
		ServiceID:    entry.ServiceID,
		StaffID:      entry.StaffID,
		SlotStart:    slot.StartAt.In(loc),
		SlotEnd:      slot.EndAt.In(loc),
		ConfirmURL:   fmt.Sprintf("%s/v1/confirm?tenant=%d&token=%s", g.cfg.BaseURL, entry.TenantID, confirm),
		DeclineURL:   fmt.Sprintf("%s/v1/decline?tenant=%d&token=%s", g.cfg.BaseURL, entry.TenantID, decline),
	}, nil
}

type channelTarget struct {
	channel   string
	recipient string
}

// channelsFor returns the ordered fallback list for an entry.  Phone
// is mandatory, so SMS is always first; email follows when present.
func channelsFor(entry *model.WaitlistEntry) []channelTarget {
	out := []channelTarget{{channel: model.ChannelSMS, recipient: entry.Phone}}
	if entry.Email != nil && *entry.Email != "" {
		out = append(out, channelTarget{channel: model.ChannelEmail, recipient: *entry.Email})
	}
	return out
}

func (g *Gateway) record(ctx context.Context, entry *model.WaitlistEntry, slot *model.Slot,
	ch channelTarget, status model.NotificationStatus, attempts int, lastErr, providerID string) *model.Notification {
	n := &model.Notification{
		ID:        uuid.NewString(),
		TenantID:  entry.TenantID,
		EntryID:   entry.ID,
		SlotID:    slot.ID,
		Channel:   ch.channel,
		Recipient: ch.recipient,
		Status:    status,
		Attempts:  attempts,
	}
	if lastErr != "" {
		n.LastError = &lastErr
	}
	if providerID != "" {
		n.ProviderMessageID = &providerID
	}
	if err := g.store.Create(ctx, n); err != nil {
		// Bookkeeping must not undo a delivered message; log and move on.
		g.log.Error().Err(err).Uint64("entry_id", entry.ID).Msg("persist notification failed")
	}
	return n
}

func (g *Gateway) enqueueRetry(ctx context.Context, n *model.Notification, retryCount int) {
	if g.retries == nil {
		return
	}
	if err := g.retries.EnqueueNotificationRetry(ctx, n.TenantID, n.ID, retryCount); err != nil {
		g.log.Error().Err(err).Str("notification_id", n.ID).Msg("enqueue retry failed")
	}
}
