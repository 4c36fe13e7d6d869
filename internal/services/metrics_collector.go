package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/ml"
)

// MetricsCollector exposes fit and recommendation metrics to Prometheus.
type MetricsCollector struct {
	fitsTotal              *prometheus.CounterVec
	fitDuration            prometheus.Histogram
	modelDimensions        *prometheus.GaugeVec
	explainedVariance      prometheus.Gauge
	recommendationRequests *prometheus.CounterVec
	recommendationLatency  prometheus.Histogram
	coldStartPredictions   prometheus.Counter
}

// NewMetricsCollector registers the collectors on reg, reusing collectors that
// are already registered under the same name.
func NewMetricsCollector(reg prometheus.Registerer, logger *logrus.Logger) *MetricsCollector {
	mc := &MetricsCollector{}

	mc.fitsTotal = register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remediation_model_fits_total",
		Help: "Number of model fits by outcome",
	}, []string{"status"}))

	mc.fitDuration = register(reg, logger, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "remediation_model_fit_duration_seconds",
		Help:    "Duration of model fits",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}))

	mc.modelDimensions = register(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "remediation_model_dimensions",
		Help: "Shape of the served model",
	}, []string{"dimension"}))

	mc.explainedVariance = register(reg, logger, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "remediation_model_explained_variance_ratio",
		Help: "Explained variance ratio of the served model",
	}))

	mc.recommendationRequests = register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remediation_recommendation_requests_total",
		Help: "Number of recommendation requests by outcome",
	}, []string{"outcome"}))

	mc.recommendationLatency = register(reg, logger, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "remediation_recommendation_duration_seconds",
		Help:    "Latency of recommendation requests",
		Buckets: prometheus.DefBuckets,
	}))

	mc.coldStartPredictions = register(reg, logger, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remediation_cold_start_predictions_total",
		Help: "Score predictions answered with the global mean fallback",
	}))

	return mc
}

func register[C prometheus.Collector](reg prometheus.Registerer, logger *logrus.Logger, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}

func (mc *MetricsCollector) RecordFit(summary *ml.FitSummary, seconds float64, err error) {
	if err != nil {
		mc.fitsTotal.WithLabelValues("failed").Inc()
		return
	}
	mc.fitsTotal.WithLabelValues("succeeded").Inc()
	mc.fitDuration.Observe(seconds)
	mc.modelDimensions.WithLabelValues("machines").Set(float64(summary.Machines))
	mc.modelDimensions.WithLabelValues("actions").Set(float64(summary.Actions))
	mc.modelDimensions.WithLabelValues("components").Set(float64(summary.Components))
	mc.explainedVariance.Set(summary.ExplainedVarianceRatio)
}

func (mc *MetricsCollector) RecordRecommendation(outcome string, seconds float64) {
	mc.recommendationRequests.WithLabelValues(outcome).Inc()
	mc.recommendationLatency.Observe(seconds)
}

func (mc *MetricsCollector) RecordColdStart() {
	mc.coldStartPredictions.Inc()
}
