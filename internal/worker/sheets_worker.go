package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campusres/internal/domain"
	"campusres/internal/ledger"
	"campusres/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NameResolver turns ids into the display names written to the sheet.
type NameResolver interface {
	ResourceName(ctx context.Context, ref models.ResourceRef) string
	UserName(ctx context.Context, id int64) string
}

// sheetTask is one reservation row to mirror. It round-trips through redis as JSON.
type sheetTask struct {
	Reservation models.Reservation `json:"reservation"`
	Attempt     int                `json:"attempt"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SheetsWorker mirrors reservation changes into Google Sheets. Tasks go to a
// redis list when one is configured and to an in-memory queue otherwise.
type SheetsWorker struct {
	sheets        domain.SheetsWriter
	names         NameResolver
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan sheetTask
	redisQueueKey string
	deadLetterKey string
	pollTimeout   time.Duration
	logger        *zerolog.Logger
}

func NewSheetsWorker(sheets domain.SheetsWriter, names NameResolver, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	return &SheetsWorker{
		sheets:        sheets,
		names:         names,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(5, 2*time.Second, time.Minute),
		queue:         make(chan sheetTask, models.WorkerQueueSize),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollTimeout:   time.Second,
		logger:        logger,
	}
}

// Follow enqueues every ledger change. The returned func unsubscribes.
func (w *SheetsWorker) Follow(l *ledger.Ledger) func() {
	return l.Subscribe(func(ch ledger.Change) {
		if err := w.EnqueueReservation(context.Background(), ch.Reservation); err != nil {
			w.logger.Warn().Err(err).Int64("reservation_id", ch.Reservation.ID).Msg("sheets enqueue failed")
		}
	})
}

func (w *SheetsWorker) EnqueueReservation(ctx context.Context, r models.Reservation) error {
	if r.ID == 0 {
		return errors.New("reservation id is required")
	}
	return w.enqueue(ctx, sheetTask{Reservation: r, CreatedAt: time.Now()})
}

func (w *SheetsWorker) enqueue(ctx context.Context, task sheetTask) error {
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("sheets_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return fmt.Errorf("sheets queue full, reservation %d dropped", task.Reservation.ID)
	}
}

// Start runs the loop until ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets_worker: started")
	defer w.logger.Info().Msg("sheets_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, t)
			continue
		default:
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, t)
			continue
		}
		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case t := <-w.queue:
				w.processTask(ctx, t)
			}
		}
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (sheetTask, bool) {
	if w.redis == nil {
		return sheetTask{}, false
	}
	res, err := w.redis.BRPop(ctx, w.pollTimeout, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("sheets_worker: redis BRPOP error")
			sleep(ctx, w.pollTimeout)
		}
		return sheetTask{}, false
	}
	if len(res) != 2 {
		return sheetTask{}, false
	}
	var task sheetTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("sheets_worker: decode redis task")
		return sheetTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task sheetTask) {
	r := task.Reservation
	err := w.sheets.UpsertReservation(ctx, &r,
		w.names.ResourceName(ctx, r.Resource),
		w.names.UserName(ctx, r.RequesterID))
	if err == nil {
		w.logger.Debug().Int64("reservation_id", r.ID).Msg("sheets_worker: row upserted")
		return
	}
	w.retryOrFail(ctx, task, err)
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task sheetTask, cause error) {
	task.Attempt++
	task.LastError = cause.Error()
	if task.Attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Int64("reservation_id", task.Reservation.ID).Msg("sheets_worker: giving up")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).
		Int64("reservation_id", task.Reservation.ID).
		Int("attempt", task.Attempt).
		Dur("retry_in", delay).
		Msg("sheets_worker: upsert failed")

	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.enqueue(ctx, task); err != nil {
			w.logger.Error().Err(err).Msg("sheets_worker: requeue failed")
		}
	})
}

func (w *SheetsWorker) pushRedis(ctx context.Context, key string, task sheetTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task sheetTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
		w.logger.Error().Err(err).Int64("reservation_id", task.Reservation.ID).Msg("sheets_worker: deadletter push")
	}
}
