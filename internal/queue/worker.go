package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	red "research-compass/internal/infra/redis"
	"research-compass/internal/infra/metrics"
)

// FailureUpdate is the terminal update published when a job exhausts its
// retries or hits a permanent error. It carries both payload-family tags so
// that resource and conversation subscribers each recognize it.
type FailureUpdate struct {
	Stage string `json:"stage"`
	Event string `json:"event"`
	Error string `json:"error,omitempty"`
}

func failureUpdate(msg string) FailureUpdate {
	return FailureUpdate{Stage: "failed", Event: "failed", Error: msg}
}

// reclaimGrace protects a job that was just popped into the active list but
// whose lock is not yet visible from being requeued spuriously.
const reclaimGrace = 5 * time.Second

// Workers runs a bounded pool of goroutines against one queue's backlog.
// Each worker blocks on the waiting list, takes a per-job lock, and executes
// the processing function; a reclaim loop sweeps jobs whose lock expired
// (worker presumed dead) back into the waiting list.
type Workers struct {
	q   *Queue
	fn  ProcessFn
	log *zerolog.Logger
}

func newWorkers(q *Queue, fn ProcessFn) *Workers {
	wl := q.log.With().Str("component", "workers").Logger()
	return &Workers{q: q, fn: fn, log: &wl}
}

// Run blocks until ctx is cancelled.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.q.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reclaimLoop(ctx)
	}()
	wg.Wait()
}

func (w *Workers) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		id, err := w.q.rdb.BRPopLPush(ctx, w.q.keyWaiting(), w.q.keyActive(), 2*time.Second)
		if err != nil {
			if errors.Is(err, red.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		w.handle(ctx, id)
	}
}

func (w *Workers) handle(ctx context.Context, id string) {
	token := uuid.NewString()
	ok, err := w.q.rdb.SetNX(ctx, w.q.keyLock(id), token, w.q.opts.LockDuration)
	if err != nil || !ok {
		// Someone else holds the job, or Redis hiccuped; the reclaim loop
		// will pick the job up again if nobody does.
		return
	}
	defer func() {
		if _, err := w.q.rdb.CompareAndDelete(ctx, w.q.keyLock(id), token); err != nil {
			w.log.Warn().Err(err).Str("job_id", id).Msg("release job lock")
		}
	}()

	job, err := w.q.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = w.q.rdb.LRem(ctx, w.q.keyActive(), 1, id)
			return
		}
		w.log.Error().Err(err).Str("job_id", id).Msg("load job")
		return
	}

	job.Status = StatusActive
	job.Attempts++
	if err := w.q.saveJob(ctx, job); err != nil {
		w.log.Error().Err(err).Str("job_id", id).Msg("mark job active")
		return
	}
	metrics.IncJobAttempt(w.q.name)
	w.log.Info().Str("job_id", id).Int("attempt", job.Attempts).Msg("processing job")

	report := func(payload any) {
		w.q.publish(ctx, job.ID, payload)
	}

	start := time.Now()
	procErr := w.fn(ctx, job, report)
	metrics.ObserveJobDuration(w.q.name, time.Since(start).Seconds())

	if procErr == nil {
		job.Status = StatusCompleted
		job.LastError = ""
		if err := w.q.saveJob(ctx, job); err != nil {
			w.log.Error().Err(err).Str("job_id", id).Msg("mark job completed")
		}
		if err := w.q.retire(ctx, job, w.q.keyCompleted()); err != nil {
			w.log.Warn().Err(err).Str("job_id", id).Msg("retire completed job")
		}
		metrics.IncJobProcessed(w.q.name, string(StatusCompleted))
		w.log.Info().Str("job_id", id).Dur("duration", time.Since(start)).Msg("job completed")
		return
	}

	job.LastError = procErr.Error()
	if IsPermanent(procErr) || job.Attempts >= job.MaxAttempts {
		w.fail(ctx, job)
		return
	}

	// Retryable: hand the job back to the waiting list.
	job.Status = StatusWaiting
	if err := w.q.saveJob(ctx, job); err != nil {
		w.log.Error().Err(err).Str("job_id", id).Msg("mark job waiting")
		return
	}
	if err := w.q.rdb.LRem(ctx, w.q.keyActive(), 1, id); err == nil {
		_ = w.q.rdb.LPush(ctx, w.q.keyWaiting(), id)
	}
	w.log.Warn().Err(procErr).Str("job_id", id).Int("attempt", job.Attempts).Msg("job attempt failed, will retry")
}

// fail marks the job permanently failed, retires it, and publishes the
// terminal failure update so waiting subscribers are not left hanging.
func (w *Workers) fail(ctx context.Context, job *Job) {
	job.Status = StatusFailed
	if err := w.q.saveJob(ctx, job); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID).Msg("mark job failed")
	}
	if err := w.q.retire(ctx, job, w.q.keyFailed()); err != nil {
		w.log.Warn().Err(err).Str("job_id", job.ID).Msg("retire failed job")
	}
	w.q.publish(ctx, job.ID, failureUpdate(job.LastError))
	metrics.IncJobProcessed(w.q.name, string(StatusFailed))
	w.log.Error().Str("job_id", job.ID).Str("error", job.LastError).Msg("job failed permanently")
}

// reclaimLoop requeues jobs stuck in the active list with no live lock: the
// worker that took them is presumed dead.
func (w *Workers) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(w.q.opts.ReclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reclaim(ctx)
			w.sampleDepths(ctx)
		}
	}
}

func (w *Workers) sampleDepths(ctx context.Context) {
	waiting, active, err := w.q.Depths(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("sample queue depths")
		return
	}
	metrics.SetQueueDepth(w.q.name, "waiting", waiting)
	metrics.SetQueueDepth(w.q.name, "active", active)
}

func (w *Workers) reclaim(ctx context.Context) {
	ids, err := w.q.rdb.LRange(ctx, w.q.keyActive(), 0, -1)
	if err != nil {
		w.log.Error().Err(err).Msg("scan active list")
		return
	}
	for _, id := range ids {
		n, err := w.q.rdb.Exists(ctx, w.q.keyLock(id))
		if err != nil || n > 0 {
			continue
		}
		job, err := w.q.GetJob(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				_ = w.q.rdb.LRem(ctx, w.q.keyActive(), 1, id)
			}
			continue
		}
		if job.Status.Terminal() || time.Since(job.UpdatedAt) < reclaimGrace {
			continue
		}
		_ = w.q.rdb.LRem(ctx, w.q.keyActive(), 1, id)
		if job.Attempts >= job.MaxAttempts {
			job.LastError = "job lock expired after final attempt"
			w.fail(ctx, job)
			continue
		}
		job.Status = StatusWaiting
		if err := w.q.saveJob(ctx, job); err != nil {
			w.log.Error().Err(err).Str("job_id", id).Msg("requeue reclaimed job")
			continue
		}
		_ = w.q.rdb.LPush(ctx, w.q.keyWaiting(), id)
		w.log.Warn().Str("job_id", id).Msg("reclaimed job with expired lock")
	}
}
