package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "boqbuilder"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	stageDuration      *prom.HistogramVec
	stageResults       *prom.CounterVec
	jobDuration        prom.Histogram
	jobOutcomes        *prom.CounterVec
	jobRetries         prom.Counter
	conversionDuration *prom.HistogramVec
	conversionResults  *prom.CounterVec
	entities           *prom.CounterVec
	queueDepth         prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		jobDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Total pipeline duration per job",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		jobOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Jobs by terminal status",
		}, []string{"outcome"}),
		jobRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Jobs resubmitted after a transient failure",
		}),
		conversionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of converter backend invocations",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"backend"}),
		conversionResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_attempts_total",
			Help:      "Converter backend attempts by result",
		}, []string{"backend", "result"}),
		entities: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_entities_total",
			Help:      "Entities extracted from drawings by kind",
		}, []string{"kind"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the queue",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.jobDuration, pr.jobOutcomes,
		pr.jobRetries, pr.conversionDuration, pr.conversionResults, pr.entities, pr.queueDepth)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveJobDuration(d time.Duration) {
	p.jobDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobOutcome(outcome JobOutcomeLabel) {
	p.jobOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncJobRetry() { p.jobRetries.Inc() }

func (p *PrometheusRecorder) ObserveConversion(backend string, d time.Duration, result ConverterResultLabel) {
	p.conversionDuration.WithLabelValues(backend).Observe(d.Seconds())
	p.conversionResults.WithLabelValues(backend, string(result)).Inc()
}

func (p *PrometheusRecorder) AddEntities(kind string, n int) {
	if n <= 0 {
		return
	}
	p.entities.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) SetQueueDepth(n int) { p.queueDepth.Set(float64(n)) }
