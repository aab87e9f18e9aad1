package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	red "research-compass/internal/infra/redis"
)

// Registry is the process-wide table of named queues. It is an explicit
// object constructed once in main and passed to anything that enqueues or
// inspects jobs; there is deliberately no package-level singleton.
type Registry struct {
	mu     sync.Mutex
	rdb    red.Client
	opts   Options
	log    *zerolog.Logger
	queues map[string]*Queue
}

func NewRegistry(rdb red.Client, opts Options, log *zerolog.Logger) *Registry {
	return &Registry{
		rdb:    rdb,
		opts:   opts.withDefaults(),
		log:    log,
		queues: make(map[string]*Queue),
	}
}

// Register provisions the producer handle, worker pool, and event bus for
// name on first call; subsequent calls for the same name return the existing
// handle untouched. The worker pool and the event pump run until ctx ends.
func (r *Registry) Register(ctx context.Context, name string, fn ProcessFn) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[name]; ok {
		return q
	}
	q := newQueue(name, r.rdb, r.opts, r.log)
	r.queues[name] = q

	sub := r.rdb.Subscribe(ctx, q.channel())
	go q.bus.run(ctx, sub)
	go newWorkers(q, fn).Run(ctx)

	r.log.Info().Str("queue", name).Int("concurrency", q.opts.Concurrency).Msg("queue registered")
	return q
}

// Get returns a previously registered queue, or nil.
func (r *Registry) Get(name string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queues[name]
}
