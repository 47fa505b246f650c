package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
)

const namespace = "riskwatch"

var _ domrepo.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycleDuration prometheus.Histogram
	cycleAssets   prometheus.Gauge
	assessments   *prometheus.CounterVec
	riskScore     *prometheus.GaugeVec
	notifications *prometheus.CounterVec
	suppressed    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full refresh cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		cycleAssets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "assets",
			Help:      "Assets processed in the last cycle",
		}),
		assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Assessments produced by level",
		}, []string{"level"}),
		riskScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "score",
			Help:      "Latest composite risk score; -1 when unavailable",
		}, []string{"symbol"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "notifications_total",
			Help:      "Notifications delivered by sink",
		}, []string{"sink"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "suppressed_total",
			Help:      "Matches suppressed by the cooldown",
		}, []string{"rule"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordCycle(seconds float64, assets int) {
	r.cycleDuration.Observe(seconds)
	r.cycleAssets.Set(float64(assets))
}

func (r *Recorder) RecordAssessment(symbol string, level models.RiskLevel, score models.RiskScore) {
	r.assessments.WithLabelValues(string(level)).Inc()
	v, ok := score.Value()
	if !ok {
		r.riskScore.WithLabelValues(symbol).Set(-1)
		return
	}
	r.riskScore.WithLabelValues(symbol).Set(float64(v))
}

func (r *Recorder) RecordNotification(sink string) {
	r.notifications.WithLabelValues(sink).Inc()
}

func (r *Recorder) RecordSuppressed(ruleID string) {
	r.suppressed.WithLabelValues(ruleID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

var _ domrepo.Metrics = Nop{}

func (Nop) RecordCycle(float64, int)                                    {}
func (Nop) RecordAssessment(string, models.RiskLevel, models.RiskScore) {}
func (Nop) RecordNotification(string)                                   {}
func (Nop) RecordSuppressed(string)                                     {}
func (Nop) RecordError(string)                                          {}
func (Nop) RecordLatency(string, float64)                               {}
