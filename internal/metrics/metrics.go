// Package metrics exposes scan pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

const namespace = "regradar"

// Scan collects pipeline events. It is safe for concurrent use.
type Scan struct {
	registry *prometheus.Registry

	sourceFailures *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	verdicts       *prometheus.CounterVec
	updates        *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	lastSuccess    prometheus.Gauge
}

var _ ports.ScanObserver = (*Scan)(nil)

// New registers every collector in a fresh registry together with the Go
// runtime and process collectors.
func New() *Scan {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Scan{
		registry: reg,
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Sources skipped during a scan",
		}, []string{"source"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_total",
			Help:      "Candidates seen per pipeline stage",
		}, []string{"stage"}), // stage: fetched, new, ranked
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "verdicts_total",
			Help:      "Classification verdicts by kind",
		}, []string{"kind"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "updates_recorded_total",
			Help:      "Regulatory updates recorded by impact",
		}, []string{"impact", "alert"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Finished scans by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan wall time",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"outcome"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful scan",
		}),
	}

	reg.MustRegister(s.sourceFailures, s.candidates, s.verdicts, s.updates, s.runs, s.runDuration, s.lastSuccess)
	return s
}

// SourceFailed counts a source that could not be read in a run.
func (s *Scan) SourceFailed(source string) {
	s.sourceFailures.WithLabelValues(source).Inc()
}

// CandidatesSeen adds n candidates at the given pipeline stage.
func (s *Scan) CandidatesSeen(stage string, n int) {
	s.candidates.WithLabelValues(stage).Add(float64(n))
}

// VerdictObserved counts one oracle verdict by kind.
func (s *Scan) VerdictObserved(kind domain.VerdictKind) {
	s.verdicts.WithLabelValues(string(kind)).Inc()
}

// UpdateRecorded counts a stored update by impact and whether it carried an alert.
func (s *Scan) UpdateRecorded(impact domain.ImpactLevel, alertCreated bool) {
	alert := "false"
	if alertCreated {
		alert = "true"
	}
	s.updates.WithLabelValues(string(impact), alert).Inc()
}

// RunFinished records the outcome and duration of a run. Success and noop
// also refresh the last success timestamp.
func (s *Scan) RunFinished(outcome string, duration time.Duration) {
	s.runs.WithLabelValues(outcome).Inc()
	s.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "success" || outcome == "noop" {
		s.lastSuccess.SetToCurrentTime()
	}
}

// Registry returns the underlying registry.
func (s *Scan) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Scan) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
