package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Development/default collaborator implementations.  Production
// deployments replace these with real provider adapters; the core is
// indifferent.

// LogSender "delivers" messages by logging them.  Useful for local
// runs and as the wiring default when no provider is configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender returns a LogSender writing through the given logger.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "sender").Logger()}
}

// Send logs the message and reports success with a synthetic provider
// message ID.
func (s *LogSender) Send(ctx context.Context, channel, recipient, message string) (SendResult, error) {
	s.log.Info().Str("channel", channel).Str("recipient", recipient).Str("message", message).Msg("send")
	return SendResult{ProviderMessageID: "log-" + uuid.NewString()}, nil
}

// TextRenderer produces a plain-text offer message for any channel.
type TextRenderer struct{}

// Render formats the offer with tenant-local times and the action links.
func (TextRenderer) Render(ctx context.Context, channel string, p Payload) (string, error) {
	return fmt.Sprintf(
		"Hi %s! A spot opened up on %s from %s to %s. Confirm: %s / Decline: %s",
		p.CustomerName,
		p.SlotStart.Format("Mon Jan 2"),
		p.SlotStart.Format("15:04"),
		p.SlotEnd.Format("15:04"),
		p.ConfirmURL,
		p.DeclineURL,
	), nil
}

// FixedClock resolves every tenant to one location.
type FixedClock struct {
	Loc *time.Location
}

// Location returns the fixed location, defaulting to UTC.
func (c FixedClock) Location(ctx context.Context, tenantID uint64) (*time.Location, error) {
	if c.Loc == nil {
		return time.UTC, nil
	}
	return c.Loc, nil
}
