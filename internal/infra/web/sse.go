package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"research-compass/internal/domain"
	"research-compass/internal/infra/logging"
	"research-compass/internal/queue"
)

// terminalUpdate is the synthetic event served to subscribers that attach
// after a job already finished. It carries both payload-family tags so
// resource and conversation clients each recognize it.
type terminalUpdate struct {
	Stage    string  `json:"stage"`
	Event    string  `json:"event"`
	Progress float64 `json:"progress,omitempty"`
	Data     string  `json:"data,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// handleJobEvents streams one job's progress updates as server-sent events.
// The stream closes after the terminal update or when the client disconnects;
// a disconnect never cancels the job.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	jobID := chi.URLParam(r, "jobID")
	ctx := logging.WithJobID(r.Context(), jobID)
	log := logging.With(ctx, s.log)

	q := s.registry.Get(queueName)
	if q == nil {
		http.NotFound(w, r)
		return
	}
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.writeError(w, r, err, "Failed to load job")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Late subscriber: the live broadcast is long gone, so serve a synthetic
	// terminal update and close.
	if job.Status.Terminal() {
		writeSSE(w, flusher, syntheticTerminal(job))
		return
	}

	// The listener callback runs on the bus pump goroutine; hand events over
	// a buffered channel so a slow client never blocks the broadcast.
	events := make(chan json.RawMessage, 64)
	id := q.Events().AddListener(func(ev queue.Event) {
		if ev.JobID != jobID {
			return
		}
		select {
		case events <- ev.Data:
		default:
			log.Warn().Msg("subscriber channel full, dropping progress event")
		}
	})
	defer q.Events().RemoveListener(id)

	// The job may have finished between the first status check and the
	// listener attaching; its terminal broadcast would never reach us. A
	// second look at the record closes that window.
	if job, err := q.GetJob(ctx, jobID); err == nil && job.Status.Terminal() {
		writeSSE(w, flusher, syntheticTerminal(job))
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			// Comment line keeps intermediaries from timing out the stream.
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case data := <-events:
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
			if isTerminal(data) {
				return
			}
		}
	}
}

func syntheticTerminal(job *queue.Job) terminalUpdate {
	if job.Status == queue.StatusFailed {
		return terminalUpdate{Stage: "failed", Event: "failed", Error: job.LastError}
	}
	return terminalUpdate{Stage: "done", Event: "done", Progress: 100, Data: "[DONE]"}
}

// isTerminal recognizes the last update of either pipeline's event family.
func isTerminal(data json.RawMessage) bool {
	var tags struct {
		Stage string `json:"stage"`
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return false
	}
	switch tags.Stage {
	case "done", "failed":
		return true
	}
	switch tags.Event {
	case "done", "failed":
		return true
	}
	return false
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}
