package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"sluice/internal/logging"
)

// Registry holds every sluice collector. It is separate from the default
// registry so a push carries only run metrics.
var Registry = prometheus.NewRegistry()

var (
	RowsRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sluice",
		Name:      "rows_read_total",
		Help:      "Rows read from the source.",
	}, []string{"source"})

	CellsNulled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sluice",
		Name:      "coerce_nulled_cells_total",
		Help:      "Non-null values that became null because the cast failed.",
	}, []string{"column"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sluice",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})

	SinkWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sluice",
		Name:      "sink_writes_total",
		Help:      "Sink write attempts by outcome (ok|error).",
	}, []string{"sink", "outcome"})

	JobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sluice",
		Name:      "jobs_submitted_total",
		Help:      "Dataproc jobs submitted by terminal outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(RowsRead, CellsNulled, StageDuration, SinkWrites, JobsSubmitted)
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Expose serves /metrics on port in the background.
func Expose(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			logging.L().Warn("metrics listener stopped", "port", port, "err", err)
		}
	}()
}

// Push sends the current values to a Pushgateway under job.
func Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
