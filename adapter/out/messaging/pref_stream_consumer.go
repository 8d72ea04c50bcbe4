package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Delivery is one stream message handed to a Dispatcher.
type Delivery struct {
	Stream string
	ID     string
	Data   []byte
	// Attempts counts deliveries of this message, starting at 1.
	Attempts int64
}

// Dispatcher receives deliveries. A delivery that is never acknowledged is
// claimed again once idle and moved to the dead letter stream after
// MaxRetries deliveries.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Delivery) error
}

// GroupAcker acknowledges deliveries of a consumer group.
type GroupAcker struct {
	client redis.Cmdable
	group  string
}

func NewGroupAcker(client redis.Cmdable, group string) *GroupAcker {
	return &GroupAcker{client: client, group: group}
}

func (a *GroupAcker) Ack(ctx context.Context, stream, id string) error {
	return a.client.XAck(ctx, stream, a.group, id).Err()
}

// Consumer reads jobs from Redis Streams with a consumer group.
type Consumer struct {
	client     redis.Cmdable
	acker      *GroupAcker
	group      string
	consumer   string
	streams    []string
	dispatcher Dispatcher
	log        zerolog.Logger

	readCount            int64
	block                time.Duration
	pendingCheckInterval time.Duration
	pendingIdleTime      time.Duration
	maxRetries           int
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Group    string
	Consumer string
	Streams  []string
	Logger   zerolog.Logger

	// Optional, defaults apply when zero.
	ReadCount            int64
	Block                time.Duration
	PendingCheckInterval time.Duration
	PendingIdleTime      time.Duration
	MaxRetries           int
}

func (cfg *ConsumerConfig) withDefaults() ConsumerConfig {
	c := *cfg
	if len(c.Streams) == 0 {
		c.Streams = []string{StreamPreferenceProcess}
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 10
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.PendingCheckInterval <= 0 {
		c.PendingCheckInterval = 30 * time.Second
	}
	if c.PendingIdleTime <= 0 {
		c.PendingIdleTime = 2 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

func NewConsumer(client redis.Cmdable, dispatcher Dispatcher, cfg *ConsumerConfig) *Consumer {
	c := cfg.withDefaults()
	return &Consumer{
		client:               client,
		acker:                NewGroupAcker(client, c.Group),
		group:                c.Group,
		consumer:             c.Consumer,
		streams:              c.Streams,
		dispatcher:           dispatcher,
		log:                  c.Logger.With().Str("component", "stream_consumer").Logger(),
		readCount:            c.ReadCount,
		block:                c.Block,
		pendingCheckInterval: c.PendingCheckInterval,
		pendingIdleTime:      c.PendingIdleTime,
		maxRetries:           c.MaxRetries,
	}
}

// Ack acknowledges a processed delivery.
func (c *Consumer) Ack(ctx context.Context, stream, id string) error {
	return c.acker.Ack(ctx, stream, id)
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().
		Str("group", c.group).
		Str("consumer", c.consumer).
		Strs("streams", c.streams).
		Msg("starting consumer")

	for _, stream := range c.streams {
		if err := c.createConsumerGroup(ctx, stream); err != nil {
			return err
		}
	}

	go c.processPendingMessages(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := c.readMessages(ctx)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("error reading from streams")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range result {
			for _, msg := range stream.Messages {
				c.dispatch(ctx, stream.Stream, msg, 1)
			}
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, stream string, msg redis.XMessage, attempts int64) {
	data, err := messageData(msg)
	if err != nil {
		// unreadable messages can never succeed
		c.log.Error().Err(err).Str("stream", stream).Str("id", msg.ID).Msg("dropping malformed message")
		if err := c.moveToDeadLetterQueue(ctx, stream, msg, err.Error()); err != nil {
			c.log.Error().Err(err).Str("id", msg.ID).Msg("error moving message to DLQ")
		}
		c.Ack(ctx, stream, msg.ID)
		return
	}

	err = c.dispatcher.Dispatch(ctx, Delivery{
		Stream:   stream,
		ID:       msg.ID,
		Data:     data,
		Attempts: attempts,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("stream", stream).Str("id", msg.ID).Msg("dispatch rejected, leaving message pending")
	}
}

// processPendingMessages periodically claims stuck pending messages.
func (c *Consumer) processPendingMessages(ctx context.Context) {
	ticker := time.NewTicker(c.pendingCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.claimAndProcessPending(ctx)
		}
	}
}

func (c *Consumer) claimAndProcessPending(ctx context.Context) {
	for _, stream := range c.streams {
		pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  c.group,
			Idle:   c.pendingIdleTime,
			Start:  "-",
			End:    "+",
			Count:  100,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.log.Error().Err(err).Str("stream", stream).Msg("error getting pending messages")
			}
			continue
		}

		for _, p := range pending {
			if p.Idle < c.pendingIdleTime {
				continue
			}

			if int(p.RetryCount) >= c.maxRetries {
				c.log.Warn().
					Str("stream", stream).
					Str("id", p.ID).
					Int64("deliveries", p.RetryCount).
					Msg("message exceeded max retries, moving to DLQ")

				if err := c.deadLetterByID(ctx, stream, p.ID); err != nil {
					c.log.Error().Err(err).Str("id", p.ID).Msg("error moving message to DLQ")
				}
				c.Ack(ctx, stream, p.ID)
				continue
			}

			claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   stream,
				Group:    c.group,
				Consumer: c.consumer,
				MinIdle:  c.pendingIdleTime,
				Messages: []string{p.ID},
			}).Result()
			if err != nil {
				c.log.Error().Err(err).Str("id", p.ID).Msg("error claiming message")
				continue
			}

			for _, msg := range claimed {
				c.log.Info().
					Str("stream", stream).
					Str("id", msg.ID).
					Dur("idle", p.Idle).
					Int64("deliveries", p.RetryCount).
					Msg("redelivering pending message")
				c.dispatch(ctx, stream, msg, p.RetryCount+1)
			}
		}
	}
}

// Pending returns the number of unacknowledged messages of a stream.
func (c *Consumer) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, c.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

func (c *Consumer) createConsumerGroup(ctx context.Context, stream string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group for %s: %w", stream, err)
	}
	return nil
}

func (c *Consumer) readMessages(ctx context.Context) ([]redis.XStream, error) {
	args := make([]string, len(c.streams)*2)
	for i, stream := range c.streams {
		args[i] = stream
		args[len(c.streams)+i] = ">"
	}

	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  args,
		Count:    c.readCount,
		Block:    c.block,
	}).Result()
}

func (c *Consumer) deadLetterByID(ctx context.Context, stream, msgID string) error {
	messages, err := c.client.XRange(ctx, stream, msgID, msgID).Result()
	if err != nil {
		return fmt.Errorf("failed to read message for DLQ: %w", err)
	}
	if len(messages) == 0 {
		return fmt.Errorf("message %s not found in stream %s", msgID, stream)
	}
	return c.moveToDeadLetterQueue(ctx, stream, messages[0], "max retries exceeded")
}

func (c *Consumer) moveToDeadLetterQueue(ctx context.Context, stream string, msg redis.XMessage, reason string) error {
	dlqStream := DeadLetterStream(stream)
	values := deadLetterValues(stream, msg, reason, c.consumer, c.group, time.Now())

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: dlqStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to add message to DLQ: %w", err)
	}

	c.log.Info().
		Str("dlq_stream", dlqStream).
		Str("original_id", msg.ID).
		Str("reason", reason).
		Msg("message moved to DLQ")
	return nil
}

func messageData(msg redis.XMessage) ([]byte, error) {
	data, ok := msg.Values["data"]
	if !ok {
		return nil, fmt.Errorf("invalid message format: missing data field")
	}
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("invalid message format: data is not a string")
	}
	return []byte(s), nil
}

func deadLetterValues(stream string, msg redis.XMessage, reason, consumer, group string, now time.Time) map[string]any {
	values := map[string]any{
		"original_stream": stream,
		"original_id":     msg.ID,
		"reason":          reason,
		"failed_at":       now.UTC().Format(time.RFC3339),
		"consumer":        consumer,
		"group":           group,
	}
	for k, v := range msg.Values {
		values["original_"+k] = v
	}
	return values
}
