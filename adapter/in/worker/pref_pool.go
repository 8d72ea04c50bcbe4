package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"preference_server/adapter/out/messaging"
	"preference_server/pkg/metrics"
)

// ErrPoolStopped is returned by Dispatch when the pool is not running.
var ErrPoolStopped = errors.New("worker pool not running")

// Acker acknowledges stream deliveries.
type Acker interface {
	Ack(ctx context.Context, stream, id string) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers          int
	WorkerChanSize   int
	JobTimeout       time.Duration
	JobTimeoutByType map[JobType]time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        8,
		WorkerChanSize: 100,
		JobTimeout:     time.Minute,
		JobTimeoutByType: map[JobType]time.Duration{
			JobPreferenceProcess: 2 * time.Minute,
		},
	}
}

// streamJobTypes maps streams to the job type of their payloads.
var streamJobTypes = map[string]JobType{
	messaging.StreamPreferenceProcess: JobPreferenceProcess,
}

// Pool runs stream deliveries on a go-pkgz/pool worker group. Successful and
// permanently failed jobs are acknowledged; other failures stay pending for
// redelivery by the consumer.
type Pool struct {
	handler *Handler
	acker   Acker
	config  *PoolConfig

	pool *pool.WorkerGroup[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	metrics *PoolMetrics
	log     zerolog.Logger

	started  bool
	mu       sync.Mutex
	submitMu sync.Mutex
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed int64
	JobsFailed    int64
	JobsDropped   int64
	InFlight      int32
}

// messageWorker implements pool.Worker for Message processing.
type messageWorker struct {
	pool *Pool
}

func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

func NewPool(handler *Handler, acker Acker, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.WorkerChanSize <= 0 {
		config.WorkerChanSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler: handler,
		acker:   acker,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		metrics: &PoolMetrics{},
		log:     log.With().Str("component", "worker_pool").Logger(),
	}
}

// Start starts the worker group.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	// a batch size of one hands every job to a worker immediately
	p.pool = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(1).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		return err
	}
	p.started = true

	go p.metricsReporter()

	p.log.Info().
		Int("workers", p.config.Workers).
		Int("worker_chan_size", p.config.WorkerChanSize).
		Msg("worker pool started")
	return nil
}

// Stop drains submitted jobs and stops the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.log.Info().Msg("stopping worker pool...")

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	p.submitMu.Lock()
	if err := p.pool.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	p.submitMu.Unlock()
	p.cancel()

	m := p.GetMetrics()
	p.log.Info().
		Int64("processed", m.JobsProcessed).
		Int64("failed", m.JobsFailed).
		Int64("dropped", m.JobsDropped).
		Msg("worker pool stopped")
}

// Dispatch implements messaging.Dispatcher.
func (p *Pool) Dispatch(_ context.Context, d messaging.Delivery) error {
	jobType, ok := streamJobTypes[d.Stream]
	if !ok {
		jobType = d.Stream
	}
	msg := &Message{
		ID:         d.ID,
		Type:       jobType,
		Payload:    d.Data,
		CreatedAt:  time.Now(),
		Attempts:   d.Attempts,
		stream:     d.Stream,
		deliveryID: d.ID,
	}
	return p.Submit(msg)
}

// Submit queues a message. It blocks while all workers are busy.
func (p *Pool) Submit(msg *Message) error {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrPoolStopped
	}

	atomic.AddInt32(&p.metrics.InFlight, 1)
	metrics.JobQueueDepth.Inc()
	p.pool.Submit(msg)
	return nil
}

func (p *Pool) jobTimeout(jobType JobType) time.Duration {
	if timeout, ok := p.config.JobTimeoutByType[jobType]; ok {
		return timeout
	}
	return p.config.JobTimeout
}

// processJob runs one job and settles its delivery.
func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	defer func() {
		atomic.AddInt32(&p.metrics.InFlight, -1)
		metrics.JobQueueDepth.Dec()
	}()

	timeout := p.jobTimeout(msg.Type)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.handler.Process(jobCtx, msg)
	metrics.RecordJob(msg.Type, err)

	log := p.log.With().
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Int64("attempt", msg.Attempts).
		Dur("elapsed", time.Since(start)).
		Logger()

	switch {
	case err == nil:
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
	case IsPermanent(err):
		atomic.AddInt64(&p.metrics.JobsDropped, 1)
		log.Error().Err(err).Msg("job failed permanently, dropping")
	default:
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Dur("timeout", timeout).Msg("job timed out")
		}
		log.Error().Err(err).Msg("job processing failed, leaving for redelivery")
		return nil
	}

	p.ack(msg)
	return nil
}

func (p *Pool) ack(msg *Message) {
	if p.acker == nil || msg.deliveryID == "" {
		return
	}
	// acknowledge even while shutting down
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.acker.Ack(ctx, msg.stream, msg.deliveryID); err != nil {
		p.log.Error().Err(err).Str("id", msg.deliveryID).Msg("error acknowledging message")
	}
}

func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			m := p.GetMetrics()
			p.log.Info().
				Int64("processed", m.JobsProcessed).
				Int64("failed", m.JobsFailed).
				Int64("dropped", m.JobsDropped).
				Int32("in_flight", m.InFlight).
				Msg("worker pool metrics")
		}
	}
}

// GetMetrics returns current pool counters.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed: atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:    atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsDropped:   atomic.LoadInt64(&p.metrics.JobsDropped),
		InFlight:      atomic.LoadInt32(&p.metrics.InFlight),
	}
}
