// Package audit defines the audit-trail contract consumed by the core.
// Recording is fire-and-forget: a failing sink is the sink's problem,
// never the caller's, and must not roll back a booking.
package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink receives audit events.  Implementations must not block the
// caller for long and must swallow their own failures.
type Sink interface {
	Record(ctx context.Context, actorType, action, resourceType string, resourceID uint64, oldValues, newValues map[string]interface{})
}

// LogSink writes audit events as structured log lines.  It is the
// default sink when no external audit store is wired.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a LogSink writing through the given logger.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

// Record logs the event and never fails.
func (s *LogSink) Record(ctx context.Context, actorType, action, resourceType string, resourceID uint64, oldValues, newValues map[string]interface{}) {
	ev := s.log.Info().
		Str("actor_type", actorType).
		Str("action", action).
		Str("resource_type", resourceType).
		Uint64("resource_id", resourceID)
	if oldValues != nil {
		ev = ev.Interface("old_values", oldValues)
	}
	if newValues != nil {
		ev = ev.Interface("new_values", newValues)
	}
	ev.Msg("audit")
}
