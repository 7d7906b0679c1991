package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusres/internal/ledger"
	"campusres/internal/models"
	"campusres/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}

func newAdvisoryWorker(t *testing.T, cfg AdvisoryWorkerConfig) (*AdvisoryWorker, *repository.MemoryAdvisoryCache) {
	t.Helper()
	logger := zerolog.Nop()
	cache := repository.NewMemoryAdvisoryCache()
	cfg.Retry = RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return NewAdvisoryWorker(cache, cfg, &logger), cache
}

func waitState(t *testing.T, w *AdvisoryWorker, key string, state models.AdvisoryState) *models.AdvisoryOutcome {
	t.Helper()
	var out *models.AdvisoryOutcome
	require.Eventually(t, func() bool {
		got, err := w.Outcome(context.Background(), key)
		if err != nil {
			return false
		}
		out = got
		return got.State == state
	}, 2*time.Second, 5*time.Millisecond)
	return out
}

func TestAdvisoryWorkerReady(t *testing.T) {
	w, _ := newAdvisoryWorker(t, AdvisoryWorkerConfig{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	var runs atomic.Int32
	job := AdvisoryJob{Key: "k1", Op: "dashboard_summary", UserID: 1, Run: func(context.Context) (*models.AdvisoryOutcome, error) {
		runs.Add(1)
		return &models.AdvisoryOutcome{Text: "summary"}, nil
	}}

	first, err := w.Submit(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, models.AdvisoryLoading, first.State)

	out := waitState(t, w, "k1", models.AdvisoryReady)
	assert.Equal(t, "summary", out.Text)

	// готовый результат отдаётся из кэша без повторного запуска
	again, err := w.Submit(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, models.AdvisoryReady, again.State)
	assert.Equal(t, int32(1), runs.Load())
}

func TestAdvisoryWorkerRetriesThenUnavailable(t *testing.T) {
	w, _ := newAdvisoryWorker(t, AdvisoryWorkerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	var runs atomic.Int32
	_, err := w.Submit(ctx, AdvisoryJob{Key: "k2", Op: "user_analysis", Run: func(context.Context) (*models.AdvisoryOutcome, error) {
		runs.Add(1)
		return nil, errors.New("upstream 503")
	}})
	require.NoError(t, err)

	out := waitState(t, w, "k2", models.AdvisoryUnavailable)
	assert.NotEmpty(t, out.Error)
	assert.Empty(t, out.Text)
	assert.Equal(t, int32(2), runs.Load())
}

func TestAdvisoryWorkerRecoversAfterFailure(t *testing.T) {
	w, _ := newAdvisoryWorker(t, AdvisoryWorkerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	var calls atomic.Int32
	job := AdvisoryJob{Key: "k3", Op: "space_summary", Run: func(context.Context) (*models.AdvisoryOutcome, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("flaky")
		}
		return &models.AdvisoryOutcome{Text: "ok"}, nil
	}}
	_, err := w.Submit(ctx, job)
	require.NoError(t, err)
	waitState(t, w, "k3", models.AdvisoryReady)
}

func TestAdvisoryWorkerRateLimit(t *testing.T) {
	w, _ := newAdvisoryWorker(t, AdvisoryWorkerConfig{UserRateLimit: 1, RateWindow: time.Hour})
	ctx := context.Background()
	run := func(context.Context) (*models.AdvisoryOutcome, error) { return &models.AdvisoryOutcome{}, nil }

	_, err := w.Submit(ctx, AdvisoryJob{Key: "a", UserID: 9, Run: run})
	require.NoError(t, err)
	_, err = w.Submit(ctx, AdvisoryJob{Key: "b", UserID: 9, Run: run})
	assert.ErrorIs(t, err, ErrRateLimited)

	// другой пользователь не затронут
	_, err = w.Submit(ctx, AdvisoryJob{Key: "c", UserID: 10, Run: run})
	assert.NoError(t, err)
}

func TestAdvisoryWorkerUnknownKey(t *testing.T) {
	w, _ := newAdvisoryWorker(t, AdvisoryWorkerConfig{})
	_, err := w.Outcome(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAdvisoryWorkerShutdownDrainsQueue(t *testing.T) {
	logger := zerolog.Nop()
	cache := repository.NewMemoryAdvisoryCache()
	cfg := AdvisoryWorkerConfig{Workers: 1, Retry: RetryPolicy{MaxRetries: 1}}
	w1 := NewAdvisoryWorker(cache, cfg, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	w1.Start(ctx)

	started := make(chan struct{})
	blocking := AdvisoryJob{Key: "busy", Run: func(ctx context.Context) (*models.AdvisoryOutcome, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	var runs atomic.Int32
	queued := AdvisoryJob{Key: "queued", Run: func(context.Context) (*models.AdvisoryOutcome, error) {
		runs.Add(1)
		return &models.AdvisoryOutcome{Text: "done"}, nil
	}}

	_, err := w1.Submit(ctx, blocking)
	require.NoError(t, err)
	<-started
	out, err := w1.Submit(ctx, queued)
	require.NoError(t, err)
	assert.Equal(t, models.AdvisoryLoading, out.State)

	cancel()
	w1.Wait()

	for _, key := range []string{"busy", "queued"} {
		got, err := w1.Outcome(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, models.AdvisoryUnavailable, got.State, key)
	}
	assert.Equal(t, int32(0), runs.Load())

	_, err = w1.Submit(context.Background(), queued)
	assert.ErrorIs(t, err, ErrStopped)

	// новый процесс на том же кэше не видит зависшего loading
	w2 := NewAdvisoryWorker(cache, cfg, &logger)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	w2.Start(ctx2)
	out, err = w2.Submit(ctx2, queued)
	require.NoError(t, err)
	assert.Equal(t, models.AdvisoryLoading, out.State)
	assert.Equal(t, "done", waitState(t, w2, "queued", models.AdvisoryReady).Text)
}

func TestAdvisoryWorkerStaleLoading(t *testing.T) {
	w, cache := newAdvisoryWorker(t, AdvisoryWorkerConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	// 2 attempts of 1s plus 1ms of backoff
	require.Equal(t, 2*time.Second+time.Millisecond, w.staleAfter())

	var runs atomic.Int32
	job := func(key string) AdvisoryJob {
		return AdvisoryJob{Key: key, Run: func(context.Context) (*models.AdvisoryOutcome, error) {
			runs.Add(1)
			return &models.AdvisoryOutcome{Text: "fresh"}, nil
		}}
	}

	// loading left behind by a process that died mid-job
	old := &models.AdvisoryOutcome{Key: "stale", State: models.AdvisoryLoading, UpdatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, cache.SetOutcome(ctx, "stale", old, time.Hour))
	_, err := w.Submit(ctx, job("stale"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", waitState(t, w, "stale", models.AdvisoryReady).Text)
	assert.Equal(t, int32(1), runs.Load())

	// a recent loading outcome belongs to a live process and is left alone
	recent := &models.AdvisoryOutcome{Key: "recent", State: models.AdvisoryLoading, UpdatedAt: time.Now()}
	require.NoError(t, cache.SetOutcome(ctx, "recent", recent, time.Hour))
	out, err := w.Submit(ctx, job("recent"))
	require.NoError(t, err)
	assert.Equal(t, models.AdvisoryLoading, out.State)
	assert.Equal(t, int32(1), runs.Load())
}

func TestAdvisoryWorkerConcurrentSubmitSameKey(t *testing.T) {
	w, _ := newAdvisoryWorker(t, AdvisoryWorkerConfig{Workers: 4, UserRateLimit: 1, RateWindow: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	release := make(chan struct{})
	var runs atomic.Int32
	job := AdvisoryJob{Key: "same", UserID: 5, Run: func(context.Context) (*models.AdvisoryOutcome, error) {
		runs.Add(1)
		<-release
		return &models.AdvisoryOutcome{Text: "once"}, nil
	}}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := w.Submit(ctx, job)
			if err == nil && out.State != models.AdvisoryLoading {
				err = errors.New("unexpected state " + string(out.State))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	close(release)
	waitState(t, w, "same", models.AdvisoryReady)
	assert.Equal(t, int32(1), runs.Load())

	// лимит списан один раз: следующий ключ того же пользователя уже отклоняется
	_, err := w.Submit(ctx, AdvisoryJob{Key: "other", UserID: 5, Run: job.Run})
	assert.ErrorIs(t, err, ErrRateLimited)
}

type fakeSheets struct {
	mu      sync.Mutex
	failFor int
	calls   int
	rows    map[int64]string
}

func (f *fakeSheets) UpsertReservation(_ context.Context, r *models.Reservation, resourceName, requesterName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFor {
		return errors.New("sheets quota")
	}
	if f.rows == nil {
		f.rows = make(map[int64]string)
	}
	f.rows[r.ID] = resourceName + "/" + requesterName + "/" + string(r.Status)
	return nil
}

func (f *fakeSheets) row(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type staticNames struct{}

func (staticNames) ResourceName(_ context.Context, ref models.ResourceRef) string { return ref.String() }
func (staticNames) UserName(context.Context, int64) string { return "Maria" }

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestSheetsWorkerFollowsLedger(t *testing.T) {
	logger := zerolog.Nop()
	sheets := &fakeSheets{}
	w := NewSheetsWorker(sheets, staticNames{}, nil, fastRetry(), &logger)

	l := ledger.New(repository.NewMemoryReservationStore(), ledger.Options{}, &logger)
	unsubscribe := w.Follow(l)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	start := time.Now().Add(time.Hour)
	id, err := l.Submit(ctx, ledger.Candidate{Resource: models.SpaceRef(2), RequesterID: 1, StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, l.SetStatus(ctx, id, models.StatusApproved))

	require.Eventually(t, func() bool {
		return sheets.row(id) == "space:2/Maria/approved"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSheetsWorkerRetries(t *testing.T) {
	logger := zerolog.Nop()
	sheets := &fakeSheets{failFor: 2}
	w := NewSheetsWorker(sheets, staticNames{}, nil, fastRetry(), &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.EnqueueReservation(ctx, models.Reservation{ID: 4, Resource: models.EquipmentRef(1), Status: models.StatusPending}))
	require.Eventually(t, func() bool { return sheets.row(4) != "" }, 2*time.Second, 5*time.Millisecond)
}

func TestSheetsWorkerRejectsUnsavedReservation(t *testing.T) {
	logger := zerolog.Nop()
	w := NewSheetsWorker(&fakeSheets{}, staticNames{}, nil, RetryPolicy{}, &logger)
	assert.Error(t, w.EnqueueReservation(context.Background(), models.Reservation{}))
}

func TestSheetsWorkerRedisQueueAndDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	logger := zerolog.Nop()
	sheets := &fakeSheets{failFor: 100}
	w := NewSheetsWorker(sheets, staticNames{}, client, RetryPolicy{MaxRetries: 1}, &logger)
	ctx := context.Background()

	require.NoError(t, w.EnqueueReservation(ctx, models.Reservation{ID: 8, Resource: models.SpaceRef(1), Status: models.StatusApproved}))
	assert.Equal(t, int64(1), client.LLen(ctx, "sheets:queue").Val())

	task, ok := w.tryRedis(ctx)
	require.True(t, ok)
	assert.Equal(t, models.SpaceRef(1), task.Reservation.Resource)

	w.processTask(ctx, task)

	raw, err := client.LPop(ctx, "sheets:deadletter").Result()
	require.NoError(t, err)
	var dead sheetTask
	require.NoError(t, json.Unmarshal([]byte(raw), &dead))
	assert.Equal(t, int64(8), dead.Reservation.ID)
	assert.Equal(t, 1, dead.Attempt)
	assert.Equal(t, "sheets quota", dead.LastError)
}
