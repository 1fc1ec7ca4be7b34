package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Handler executes one job of each type.  Implementations must be
// idempotent: the broker delivers at least once, and a deferred job
// stays unacked until its re-publish lands, so it can arrive again
// after a crash.
type Handler interface {
	HandleSweep(ctx context.Context, job ExpiredHoldSweepJob) error
	HandleCascade(ctx context.Context, job CascadeJob) error
	HandleNotificationRetry(ctx context.Context, job NotificationRetryJob) error
	HandleCleanup(ctx context.Context, job CleanupJob) error
}

// Consumer drains the waitlist.jobs queue.  It runs a reconnect loop
// with exponential backoff and keeps running until the context is
// cancelled; handler errors are logged and the message rejected
// without requeue to avoid tight redelivery loops.  The recurring
// sweep recovers any work a dropped job leaves behind.
type Consumer struct {
	url       string
	handler   Handler
	publisher *Publisher
	log       zerolog.Logger
}

// NewConsumer returns a Consumer dispatching to the given handler.
// The publisher is used to re-publish jobs whose NotBefore has not
// arrived yet.
func NewConsumer(url string, handler Handler, publisher *Publisher, log zerolog.Logger) *Consumer {
	return &Consumer{
		url:       url,
		handler:   handler,
		publisher: publisher,
		log:       log.With().Str("component", "job-consumer").Logger(),
	}
}

// Start runs the consume loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial broker failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := c.consumeLoop(ctx, conn); err != nil {
			_ = conn.Close()
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Deferred jobs sit unacked until their due time, so the prefetch
	// window must cover them on top of in-flight work.
	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := ch.QueueDeclare(jobQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(jobQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			var env Envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				c.log.Error().Err(err).Msg("undecodable job envelope")
				_ = d.Nack(false, false)
				continue
			}
			if env.NotBefore != nil {
				if wait := time.Until(*env.NotBefore); wait > 0 {
					c.deferJob(d, env, wait)
					continue
				}
			}
			if err := c.dispatch(ctx, env); err != nil {
				c.log.Error().Err(err).Str("job_id", env.ID).Msg("job failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// deferJob holds a not-yet-due job unacked on the channel and acks it
// only once its re-publish has landed.  A crash during the wait leaves
// the message with the broker for redelivery, and a failed re-publish
// nacks it back onto the queue.
func (c *Consumer) deferJob(d amqp.Delivery, env Envelope, wait time.Duration) {
	c.log.Debug().Str("job_id", env.ID).Dur("wait", wait).Msg("deferring job")
	time.AfterFunc(wait, func() {
		env.NotBefore = nil
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.publisher.publish(pubCtx, env); err != nil {
			c.log.Error().Err(err).Str("job_id", env.ID).Msg("re-publish of deferred job failed")
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	})
}

func (c *Consumer) dispatch(ctx context.Context, env Envelope) error {
	switch env.Type {
	case JobExpiredHoldSweep:
		var job ExpiredHoldSweepJob
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("unmarshal sweep job: %w", err)
		}
		return c.handler.HandleSweep(ctx, job)
	case JobCascade:
		var job CascadeJob
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("unmarshal cascade job: %w", err)
		}
		return c.handler.HandleCascade(ctx, job)
	case JobNotificationRetry:
		var job NotificationRetryJob
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("unmarshal retry job: %w", err)
		}
		return c.handler.HandleNotificationRetry(ctx, job)
	case JobCleanup:
		var job CleanupJob
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("unmarshal cleanup job: %w", err)
		}
		return c.handler.HandleCleanup(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", env.Type)
	}
}
