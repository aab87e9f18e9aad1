package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	red "research-compass/internal/infra/redis"
)

// Event is one progress update as seen on the wire: the emitting job's id
// plus the pipeline-specific payload. The bus fans every event out to every
// listener; filtering by job id is the subscriber's concern.
type Event struct {
	JobID string          `json:"jobId"`
	Data  json.RawMessage `json:"data"`
}

type Listener func(Event)

// Bus delivers a queue's progress broadcast to in-process listeners. Events
// arrive over a single Redis pub/sub subscription and are dispatched
// sequentially, which preserves per-job emission order for every listener.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	log       *zerolog.Logger
}

func newBus(log *zerolog.Logger) *Bus {
	return &Bus{listeners: make(map[int]Listener), log: log}
}

// AddListener registers fn and returns a handle for RemoveListener.
func (b *Bus) AddListener(fn Listener) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[b.nextID] = fn
	return b.nextID
}

func (b *Bus) RemoveListener(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

func (b *Bus) emit(ev Event) {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// run pumps the pub/sub subscription into local listeners until ctx ends.
func (b *Bus) run(ctx context.Context, sub red.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				b.log.Warn().Err(err).Msg("dropping malformed progress event")
				continue
			}
			b.emit(ev)
		}
	}
}
