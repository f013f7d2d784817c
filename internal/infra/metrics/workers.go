package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workerBusy, rateLimitRejections) }

var workerBusy = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "worker_busy",
		Help: "Number of workers currently executing a job.",
	},
)

var rateLimitRejections = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "job_start_rate_limited_total",
		Help: "Job starts deferred because the rolling-window start cap was reached.",
	},
)

func IncWorkerBusy() { workerBusy.Inc() }

func DecWorkerBusy() { workerBusy.Dec() }

func IncRateLimitRejected() { rateLimitRejections.Inc() }
