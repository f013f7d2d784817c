package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsSubmittedTotal, jobAttempts, jobsPurgedTotal) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "debate_jobs_processed_total",
		Help: "Total number of debate jobs processed, labeled by type and terminal status.",
	},
	[]string{"type", "status"},
)

var jobsSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "debate_jobs_submitted_total",
		Help: "Total number of jobs accepted at submission, labeled by type.",
	},
	[]string{"type"},
)

var jobAttempts = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "debate_job_attempts",
		Help:    "Distribution of AI call attempts per finished job.",
		Buckets: []float64{1, 2, 3, 4, 5},
	},
	[]string{"type"},
)

var jobsPurgedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "debate_jobs_purged_total",
		Help: "Terminal jobs removed by the cleanup worker.",
	},
)

func IncJobProcessed(jobType, status string) {
	jobsProcessedTotal.WithLabelValues(norm(jobType), norm(status)).Inc()
}

func IncJobSubmitted(jobType string) {
	jobsSubmittedTotal.WithLabelValues(norm(jobType)).Inc()
}

func ObserveJobAttempts(jobType string, attempts int) {
	jobAttempts.WithLabelValues(norm(jobType)).Observe(float64(attempts))
}

func AddJobsPurged(n int64) {
	jobsPurgedTotal.Add(float64(n))
}
