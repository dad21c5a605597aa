package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TaskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookery_task_runs_total",
		Help: "Task runs by data type and outcome",
	}, []string{"data_type", "outcome"})
	RecordsNew = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookery_records_new_total",
		Help: "New records merged by data type",
	}, []string{"data_type"})
	RecordsUpdated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookery_records_updated_total",
		Help: "Updated records merged by data type",
	}, []string{"data_type"})
	RecordsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rookery_records_discarded_total",
		Help: "Raw records discarded for missing ids",
	})
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rookery_batch_duration_seconds",
		Help:    "Batch run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookery_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rookery_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(TaskRuns, RecordsNew, RecordsUpdated, RecordsDiscarded,
		BatchDuration, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveBatchDuration records a batch duration from its start time.
func ObserveBatchDuration(start time.Time) {
	BatchDuration.Observe(time.Since(start).Seconds())
}

// IncCommandRun increments the run counter for a CLI command.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError increments the error counter for a CLI command.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
