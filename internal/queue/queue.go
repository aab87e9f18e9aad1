package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"research-compass/internal/domain"
	red "research-compass/internal/infra/redis"
	"research-compass/internal/infra/metrics"
)

// ProgressReporter publishes one mid-job update on the queue's event bus.
// Publishing is fire-and-forget: a slow or absent subscriber never blocks the
// job.
type ProgressReporter func(payload any)

// ProcessFn executes one job attempt. Returning an error triggers a retry
// unless the error is marked Permanent or no attempts remain.
type ProcessFn func(ctx context.Context, job *Job, report ProgressReporter) error

// Options configures one named queue's worker pool and retention policy.
type Options struct {
	Concurrency     int           // parallel jobs per process
	LockDuration    time.Duration // after this an unresponsive worker is presumed dead
	MaxAttempts     int           // attempts before a job is marked failed
	Retention       int           // completed/failed jobs kept for inspection
	ReclaimInterval time.Duration // how often expired locks are swept
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.LockDuration <= 0 {
		o.LockDuration = 15 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Retention <= 0 {
		o.Retention = 50
	}
	if o.ReclaimInterval <= 0 {
		o.ReclaimInterval = 30 * time.Second
	}
	return o
}

// Queue is the producer/inspection handle for one named queue. Jobs and their
// bookkeeping lists live in Redis so separate processes can run worker pools
// against the same backlog, coordinated only through the backend's locking.
type Queue struct {
	name string
	rdb  red.Client
	bus  *Bus
	opts Options
	log  *zerolog.Logger
}

func newQueue(name string, rdb red.Client, opts Options, log *zerolog.Logger) *Queue {
	ql := log.With().Str("component", "queue").Str("queue", name).Logger()
	return &Queue{
		name: name,
		rdb:  rdb,
		bus:  newBus(&ql),
		opts: opts.withDefaults(),
		log:  &ql,
	}
}

func (q *Queue) Name() string { return q.name }

// Events exposes the queue-wide progress broadcast.
func (q *Queue) Events() *Bus { return q.bus }

func (q *Queue) keyWaiting() string       { return "queue:" + q.name + ":waiting" }
func (q *Queue) keyActive() string        { return "queue:" + q.name + ":active" }
func (q *Queue) keyCompleted() string     { return "queue:" + q.name + ":completed" }
func (q *Queue) keyFailed() string        { return "queue:" + q.name + ":failed" }
func (q *Queue) keyJob(id string) string  { return "queue:" + q.name + ":job:" + id }
func (q *Queue) keyLock(id string) string { return "queue:" + q.name + ":lock:" + id }
func (q *Queue) channel() string          { return "queue:" + q.name + ":events" }

// Enqueue stores a new waiting job and returns its identifier.
func (q *Queue) Enqueue(ctx context.Context, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now()
	job := &Job{
		ID:          ulid.Make().String(),
		Queue:       q.name,
		Payload:     data,
		Status:      StatusWaiting,
		MaxAttempts: q.opts.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.saveJob(ctx, job); err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.keyWaiting(), job.ID); err != nil {
		return "", fmt.Errorf("push waiting: %w", err)
	}
	metrics.IncJobEnqueued(q.name)
	q.log.Debug().Str("job_id", job.ID).Msg("job enqueued")
	return job.ID, nil
}

// GetJob returns the stored job record, or domain.ErrNotFound once the job
// has aged out of retention (or never existed).
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.rdb.Get(ctx, q.keyJob(id))
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Depths reports the current lengths of the waiting and active lists.
func (q *Queue) Depths(ctx context.Context) (waiting, active int64, err error) {
	if waiting, err = q.rdb.LLen(ctx, q.keyWaiting()); err != nil {
		return 0, 0, err
	}
	if active, err = q.rdb.LLen(ctx, q.keyActive()); err != nil {
		return 0, 0, err
	}
	return waiting, active, nil
}

func (q *Queue) saveJob(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.rdb.Set(ctx, q.keyJob(job.ID), string(data), 0)
}

// publish broadcasts one progress update tagged with the job id. Errors are
// logged and swallowed: progress delivery is best-effort.
func (q *Queue) publish(ctx context.Context, jobID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		q.log.Error().Err(err).Str("job_id", jobID).Msg("marshal progress payload")
		return
	}
	ev, err := json.Marshal(Event{JobID: jobID, Data: data})
	if err != nil {
		q.log.Error().Err(err).Str("job_id", jobID).Msg("marshal progress event")
		return
	}
	if err := q.rdb.Publish(ctx, q.channel(), string(ev)); err != nil {
		q.log.Warn().Err(err).Str("job_id", jobID).Msg("publish progress event")
		return
	}
	metrics.IncProgressEvent(q.name)
}

// retire moves a finished job onto its retention list and drops records that
// aged past the retention cap.
func (q *Queue) retire(ctx context.Context, job *Job, list string) error {
	if err := q.rdb.LRem(ctx, q.keyActive(), 1, job.ID); err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, list, job.ID); err != nil {
		return err
	}
	keep := int64(q.opts.Retention)
	aged, err := q.rdb.LRange(ctx, list, keep, -1)
	if err != nil {
		return err
	}
	for _, id := range aged {
		if err := q.rdb.Del(ctx, q.keyJob(id)); err != nil {
			q.log.Warn().Err(err).Str("job_id", id).Msg("dropping retired job record")
		}
	}
	return q.rdb.LTrim(ctx, list, 0, keep-1)
}
