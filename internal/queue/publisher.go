package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const jobQueueName = "waitlist.jobs"

// Publisher enqueues background jobs on the durable waitlist.jobs
// queue.  Each publish opens a fresh connection; callers treat errors
// as advisory where the work will be recovered by the recurring sweep
// anyway, and as real failures where it will not.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher returns a Publisher for the given broker URL.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log.With().Str("component", "queue-publisher").Logger()}
}

// EnqueueCascade schedules a cascade for a slot after a decline or
// expiry.
func (p *Publisher) EnqueueCascade(ctx context.Context, job CascadeJob) error {
	env, err := NewEnvelope(JobCascade, job, nil)
	if err != nil {
		return err
	}
	return p.publish(ctx, env)
}

// EnqueueNotificationRetry schedules a re-send with exponential
// backoff derived from the retry count.
func (p *Publisher) EnqueueNotificationRetry(ctx context.Context, tenantID uint64, notificationID string, retryCount int) error {
	due := time.Now().UTC().Add(RetryBackoff(retryCount))
	env, err := NewEnvelope(JobNotificationRetry, NotificationRetryJob{
		TenantID:       tenantID,
		NotificationID: notificationID,
		RetryCount:     retryCount,
	}, &due)
	if err != nil {
		return err
	}
	return p.publish(ctx, env)
}

// EnqueueSweep schedules an expired-hold sweep, optionally scoped to
// one tenant.
func (p *Publisher) EnqueueSweep(ctx context.Context, tenantID *uint64) error {
	env, err := NewEnvelope(JobExpiredHoldSweep, ExpiredHoldSweepJob{TenantID: tenantID}, nil)
	if err != nil {
		return err
	}
	return p.publish(ctx, env)
}

// EnqueueCleanup schedules a notification-retention purge.
func (p *Publisher) EnqueueCleanup(ctx context.Context, retentionDays int) error {
	env, err := NewEnvelope(JobCleanup, CleanupJob{RetentionDays: retentionDays}, nil)
	if err != nil {
		return err
	}
	return p.publish(ctx, env)
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error().Err(err).Msg("dial broker failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error().Err(err).Msg("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so jobs survive broker restarts.
	if _, err := ch.QueueDeclare(jobQueueName, true, false, false, false, nil); err != nil {
		p.log.Error().Err(err).Msg("queue declare failed")
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.EnqueuedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", jobQueueName, false, false, pub); err != nil {
		p.log.Error().Err(err).Str("job_type", string(env.Type)).Msg("publish failed")
		return err
	}
	p.log.Debug().Str("job_type", string(env.Type)).Str("job_id", env.ID).Msg("job enqueued")
	return nil
}
