package metrics

import "github.com/prometheus/client_golang/prometheus"

// RiskMetrics считает пометки риска и результаты модерации листингов.
type RiskMetrics struct {
	flagsRaised *prometheus.CounterVec
	listings    *prometheus.CounterVec
}

// NewRiskMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewRiskMetrics() *RiskMetrics {
	return NewRiskMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRiskMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewRiskMetricsWithRegisterer(registerer prometheus.Registerer) *RiskMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &RiskMetrics{
		flagsRaised: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "resale_risk_flags_raised_total",
			Help: "Total number of risk flags persisted grouped by type",
		}, []string{"type"}),
		listings: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "resale_listing_transitions_total",
			Help: "Total number of listing status transitions grouped by target status",
		}, []string{"status"}),
	}
}

// RecordFlag увеличивает счётчик пометок типа flagType.
func (m *RiskMetrics) RecordFlag(flagType string) {
	if m == nil {
		return
	}
	m.flagsRaised.WithLabelValues(flagType).Inc()
}

// RecordListingTransition фиксирует перевод листинга в status.
func (m *RiskMetrics) RecordListingTransition(status string) {
	if m == nil {
		return
	}
	m.listings.WithLabelValues(status).Inc()
}
