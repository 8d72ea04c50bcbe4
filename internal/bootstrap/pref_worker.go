package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"preference_server/adapter/in/worker"
	"preference_server/adapter/out/messaging"
	"preference_server/config"
	"preference_server/pkg/apperr"
	"preference_server/pkg/logger"
)

// Worker consumes queued processing jobs from the Redis stream.
type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
	log      zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	if deps.Redis == nil {
		cleanup()
		return nil, nil, apperr.ConfigError("worker mode requires a reachable REDIS_URL")
	}

	log := logger.Component("worker")

	handler := worker.NewHandler(worker.NewPreferenceProcessor(deps.PreferenceService))

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMax > 0 {
		poolConfig.Workers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.WorkerChanSize = cfg.WorkerQueueSize
	}
	if cfg.JobTimeout > 0 {
		poolConfig.JobTimeout = cfg.JobTimeout
	}

	pool := worker.NewPool(handler, messaging.NewGroupAcker(deps.Redis, cfg.ConsumerGroup), poolConfig, log)

	consumer := messaging.NewConsumer(deps.Redis, pool, &messaging.ConsumerConfig{
		Group:                cfg.ConsumerGroup,
		Consumer:             cfg.WorkerID,
		Streams:              []string{messaging.StreamPreferenceProcess},
		Logger:               log,
		PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
		MaxRetries:           cfg.ConsumerMaxRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:     pool,
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
		log:      log,
	}
	return w, cleanup, nil
}

// Start runs the pool and the consumer and blocks until Stop has drained
// the pool.
func (w *Worker) Start() {
	if err := w.pool.Start(); err != nil {
		w.log.Error().Err(err).Msg("failed to start worker pool")
		w.Stop()
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(w.ctx); err != nil {
			w.log.Error().Err(err).Msg("stream consumer stopped")
		}
	}()

	w.log.Info().Msg("worker started")
	<-w.stopped
}

// Stop stops reading new messages, then drains the pool.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
		w.pool.Stop()
		close(w.stopped)
		w.log.Info().Msg("worker stopped")
	})
}
