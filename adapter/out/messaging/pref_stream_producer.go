// Package messaging carries preference processing jobs over Redis Streams.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"preference_server/core/port/out"
)

// Stream names
const (
	StreamPreferenceProcess = "stream:preference:process"
	deadLetterPrefix        = "dlq:"
)

// DeadLetterStream returns the dead letter stream of a stream.
func DeadLetterStream(stream string) string {
	return deadLetterPrefix + stream
}

// RedisProducer implements out.JobPublisher using Redis Streams.
type RedisProducer struct {
	client redis.Cmdable
	// MaxLen caps the stream length approximately; zero keeps everything.
	maxLen int64
}

var _ out.JobPublisher = (*RedisProducer)(nil)

func NewRedisProducer(client redis.Cmdable, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

// PublishProcessJob publishes a processing job. An empty job id is filled in.
func (p *RedisProducer) PublishProcessJob(ctx context.Context, job *out.ProcessJob) error {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	return p.publish(ctx, StreamPreferenceProcess, job)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, job any) error {
	values, err := encodeValues(job, time.Now())
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

func encodeValues(job any, now time.Time) (map[string]any, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return map[string]any{
		"data":         string(data),
		"published_at": now.UTC().Format(time.RFC3339Nano),
	}, nil
}
