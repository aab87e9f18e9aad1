package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsEnqueuedTotal,
		jobsProcessedTotal,
		jobDurationSeconds,
		jobAttemptsTotal,
		progressEventsTotal,
		queueDepth,
	)
}

var jobsEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_jobs_enqueued_total",
		Help: "Total number of jobs enqueued, labeled by queue.",
	},
	[]string{"queue"},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_jobs_processed_total",
		Help: "Total number of jobs finished, labeled by queue and status.",
	},
	[]string{"queue", "status"}, // 'completed', 'failed'
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "queue_job_duration_seconds",
		Help:    "Wall-clock duration of a single job attempt.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	},
	[]string{"queue"},
)

var jobAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_job_attempts_total",
		Help: "Total job attempts including retries, labeled by queue.",
	},
	[]string{"queue"},
)

var progressEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_progress_events_total",
		Help: "Progress updates published on the event bus, labeled by queue.",
	},
	[]string{"queue"},
)

var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Jobs currently sitting in a queue list, labeled by queue and state.",
	},
	[]string{"queue", "state"}, // 'waiting', 'active'
)

func IncJobEnqueued(queue string) {
	jobsEnqueuedTotal.WithLabelValues(norm(queue)).Inc()
}

func IncJobProcessed(queue, status string) {
	jobsProcessedTotal.WithLabelValues(norm(queue), norm(status)).Inc()
}

func ObserveJobDuration(queue string, seconds float64) {
	jobDurationSeconds.WithLabelValues(norm(queue)).Observe(seconds)
}

func IncJobAttempt(queue string) {
	jobAttemptsTotal.WithLabelValues(norm(queue)).Inc()
}

func IncProgressEvent(queue string) {
	progressEventsTotal.WithLabelValues(norm(queue)).Inc()
}

func SetQueueDepth(queue, state string, n int64) {
	queueDepth.WithLabelValues(norm(queue), norm(state)).Set(float64(n))
}
