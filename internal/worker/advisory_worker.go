package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campusres/internal/domain"
	"campusres/internal/metrics"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrRateLimited = errors.New("advisory rate limit exceeded")
	ErrQueueFull   = errors.New("advisory queue is full")
	ErrStopped     = errors.New("advisory worker is stopped")
)

// AdvisoryJob is one generative request. Run fills Text or Recommend of the
// returned outcome; the worker owns Key, State and timestamps.
type AdvisoryJob struct {
	Key    string
	Op     string
	UserID int64
	Run    func(ctx context.Context) (*models.AdvisoryOutcome, error)
}

type AdvisoryWorkerConfig struct {
	Workers       int
	Timeout       time.Duration
	CacheTTL      time.Duration
	UserRateLimit int
	RateWindow    time.Duration
	Retry         RetryPolicy
}

// AdvisoryWorker runs generative jobs off the request path. Callers get a
// "loading" outcome immediately and poll the cache for the final state.
type AdvisoryWorker struct {
	cache  domain.AdvisoryCache
	cfg    AdvisoryWorkerConfig
	queue  chan AdvisoryJob
	now    func() time.Time
	wg     sync.WaitGroup
	logger *zerolog.Logger

	// mu guards inflight and stopped; queue pushes happen under it so a
	// drain after stop sees every job
	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool
}

func NewAdvisoryWorker(cache domain.AdvisoryCache, cfg AdvisoryWorkerConfig, logger *zerolog.Logger) *AdvisoryWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = models.DefaultAdvisoryCacheTTL
	}
	cfg.Retry = cfg.Retry.withDefaults(3, time.Second, 10*time.Second)

	return &AdvisoryWorker{
		cache:  cache,
		cfg:    cfg,
		queue:    make(chan AdvisoryJob, models.WorkerQueueSize),
		now:      time.Now,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// staleAfter is the longest a job can legitimately stay loading: every
// attempt timing out plus the backoff between attempts.
func (w *AdvisoryWorker) staleAfter() time.Duration {
	total := w.cfg.Timeout * time.Duration(w.cfg.Retry.MaxRetries)
	for attempt := 1; attempt < w.cfg.Retry.MaxRetries; attempt++ {
		total += w.cfg.Retry.NextDelay(attempt)
	}
	return total
}

func (w *AdvisoryWorker) claim(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[key]; busy {
		return false
	}
	w.inflight[key] = struct{}{}
	return true
}

func (w *AdvisoryWorker) release(key string) {
	w.mu.Lock()
	delete(w.inflight, key)
	w.mu.Unlock()
}

// enqueue fails with ErrStopped once the workers have drained the queue.
func (w *AdvisoryWorker) enqueue(job AdvisoryJob) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit returns the cached outcome for job.Key when it is ready, or loading
// and not yet stale. Otherwise it charges the user's rate limit and queues the
// job. A key already queued or running in this process is never queued twice.
func (w *AdvisoryWorker) Submit(ctx context.Context, job AdvisoryJob) (*models.AdvisoryOutcome, error) {
	if !w.claim(job.Key) {
		existing, err := w.cache.GetOutcome(ctx, job.Key)
		if err == nil && existing != nil && existing.State != models.AdvisoryUnavailable {
			return existing, nil
		}
		return &models.AdvisoryOutcome{Key: job.Key, State: models.AdvisoryLoading, UpdatedAt: w.now()}, nil
	}

	existing, err := w.cache.GetOutcome(ctx, job.Key)
	if err != nil {
		w.logger.Warn().Err(err).Str("key", job.Key).Msg("advisory cache read failed")
	}
	if existing != nil {
		switch {
		case existing.State == models.AdvisoryReady:
			w.release(job.Key)
			return existing, nil
		case existing.State == models.AdvisoryLoading && w.now().Sub(existing.UpdatedAt) < w.staleAfter():
			// другой процесс ещё работает над этим ключом
			w.release(job.Key)
			return existing, nil
		case existing.State == models.AdvisoryLoading:
			w.logger.Warn().Str("key", job.Key).Time("since", existing.UpdatedAt).Msg("stale loading outcome, requeueing")
		}
	}

	if w.cfg.UserRateLimit > 0 {
		allowed, err := w.cache.CheckRateLimit(ctx, job.UserID, w.cfg.UserRateLimit, w.cfg.RateWindow)
		if err != nil {
			w.release(job.Key)
			return nil, fmt.Errorf("check rate limit: %w", err)
		}
		if !allowed {
			w.release(job.Key)
			return nil, ErrRateLimited
		}
	}

	loading := &models.AdvisoryOutcome{Key: job.Key, State: models.AdvisoryLoading, UpdatedAt: w.now()}
	if err := w.cache.SetOutcome(ctx, job.Key, loading, w.cfg.CacheTTL); err != nil {
		w.release(job.Key)
		return nil, fmt.Errorf("store loading outcome: %w", err)
	}

	if err := w.enqueue(job); err != nil {
		w.finish(ctx, job, nil, err)
		return nil, err
	}
	metrics.IncAdvisory(job.Op, string(models.AdvisoryLoading))
	return loading, nil
}

// Outcome returns the cached outcome for key or domain.ErrNotFound.
func (w *AdvisoryWorker) Outcome(ctx context.Context, key string) (*models.AdvisoryOutcome, error) {
	out, err := w.cache.GetOutcome(ctx, key)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

// Start launches the worker goroutines. When ctx is done they stop taking
// jobs and every job still queued is finished as unavailable.
func (w *AdvisoryWorker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.logger.Debug().Int("worker", id).Msg("advisory worker started")
			for {
				select {
				case <-ctx.Done():
					w.drain()
					return
				case job := <-w.queue:
					if ctx.Err() != nil {
						w.finish(context.Background(), job, nil, ErrStopped)
						continue
					}
					w.process(ctx, job)
				}
			}
		}(i)
	}
}

func (w *AdvisoryWorker) drain() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	for {
		select {
		case job := <-w.queue:
			w.finish(context.Background(), job, nil, ErrStopped)
		default:
			return
		}
	}
}

func (w *AdvisoryWorker) Wait() { w.wg.Wait() }

func (w *AdvisoryWorker) process(ctx context.Context, job AdvisoryJob) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.Retry.MaxRetries; attempt++ {
		result, err := w.runOnce(ctx, job)
		if err == nil {
			w.finish(ctx, job, result, nil)
			return
		}
		lastErr = err
		w.logger.Warn().Err(err).Str("op", job.Op).Int("attempt", attempt).Msg("advisory job failed")

		if attempt < w.cfg.Retry.MaxRetries && !sleep(ctx, w.cfg.Retry.NextDelay(attempt)) {
			break
		}
	}
	w.finish(ctx, job, nil, lastErr)
}

func (w *AdvisoryWorker) runOnce(ctx context.Context, job AdvisoryJob) (*models.AdvisoryOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	return job.Run(ctx)
}

func (w *AdvisoryWorker) finish(ctx context.Context, job AdvisoryJob, result *models.AdvisoryOutcome, cause error) {
	out := &models.AdvisoryOutcome{Key: job.Key, UpdatedAt: w.now()}
	if cause != nil || result == nil {
		out.State = models.AdvisoryUnavailable
		out.Error = "the advisory service is unavailable, try again later"
	} else {
		out.State = models.AdvisoryReady
		out.Text = result.Text
		out.Recommend = result.Recommend
	}

	// контекст мог уже закончиться при остановке
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := w.cache.SetOutcome(ctx, job.Key, out, w.cfg.CacheTTL); err != nil {
		w.logger.Error().Err(err).Str("key", job.Key).Msg("store advisory outcome failed")
	}
	w.release(job.Key)
	metrics.IncAdvisory(job.Op, string(out.State))
}
