// Package metrics exposes Prometheus collectors for the batch engines and
// the update queue. Counters are engine-driven; queue depth gauges are
// refreshed by a poller in main.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sjsh1623/MoheBatch-sub001/jobs"
	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
	"github.com/sjsh1623/MoheBatch-sub001/queue"
)

// Metrics bundles every collector behind one registry so tests can run
// side by side without global-registry collisions.
type Metrics struct {
	registry *prometheus.Registry

	ItemsRead    *prometheus.CounterVec
	ItemsWritten *prometheus.CounterVec
	ItemsSkipped *prometheus.CounterVec
	RunsTotal    *prometheus.CounterVec

	RunningEngines prometheus.Gauge

	QueueDepth     *prometheus.GaugeVec
	TasksInFlight  prometheus.Gauge
	TasksCompleted prometheus.Gauge
	TasksFailed    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ItemsRead: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_read_total",
			Help: "Items read by each batch job.",
		}, []string{"job"}),
		ItemsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_written_total",
			Help: "Items written by each batch job.",
		}, []string{"job"}),
		ItemsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_skipped_total",
			Help: "Items skipped by each batch job after retry exhaustion.",
		}, []string{"job"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_runs_total",
			Help: "Terminal engine runs by job and status.",
		}, []string{"job", "status"}),
		RunningEngines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "batch_running_engines",
			Help: "Engines currently live across all jobs.",
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "update_queue_depth",
			Help: "Tasks waiting per queue lane.",
		}, []string{"lane"}),
		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "update_queue_inflight",
			Help: "Tasks currently claimed by a worker.",
		}),
		TasksCompleted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "update_queue_completed_places",
			Help: "Distinct places completed by the update queue.",
		}),
		TasksFailed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "update_queue_failed_places",
			Help: "Distinct places dead-lettered by the update queue.",
		}),
	}
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentRunner wraps a job runner so every run feeds the engine
// collectors.
func (m *Metrics) InstrumentRunner(job string, runner jobs.StepRunner) jobs.StepRunner {
	return func(ctx context.Context, workerID int, stopRequested func() bool) (pipeline.Result, error) {
		m.RunningEngines.Inc()
		defer m.RunningEngines.Dec()

		res, err := runner(ctx, workerID, stopRequested)

		m.ItemsRead.WithLabelValues(job).Add(float64(res.Read))
		m.ItemsWritten.WithLabelValues(job).Add(float64(res.Written))
		m.ItemsSkipped.WithLabelValues(job).Add(float64(res.Skipped))
		m.RunsTotal.WithLabelValues(job, string(res.Status)).Inc()
		return res, err
	}
}

// ObserveQueue refreshes the queue gauges from one stats snapshot.
func (m *Metrics) ObserveQueue(stats queue.Stats) {
	m.QueueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	m.QueueDepth.WithLabelValues("priority").Set(float64(stats.Priority))
	m.TasksInFlight.Set(float64(stats.InFlight))
	m.TasksCompleted.Set(float64(stats.CompletedPlaces))
	m.TasksFailed.Set(float64(stats.FailedPlaces))
}
