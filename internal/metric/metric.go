// Package metric holds the fixed set of independent sensitivity metrics.
// Every metric is a pure function over the RawDataBundle yielding a value in
// [0,1]; metrics never depend on each other's output, so the registry may run
// them in any order.
package metric

import (
	"fmt"
	"log/slog"
	"math"

	"wikimetron/internal/domain"
	"wikimetron/internal/telemetry"
)

// Metric is one bounded scoring unit.
type Metric interface {
	Name() string
	Category() domain.Category
	// Compute returns the score in [0,1] plus optional evidence detail.
	Compute(b *domain.RawDataBundle) (float64, []string, error)
}

// Registry owns the fixed metric list, registered at startup.
type Registry struct {
	metrics []Metric
	logger  *slog.Logger
}

// NewRegistry builds the default registry with all sixteen metrics.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		metrics: []Metric{
			pageviewSpike{},
			editSpike{},
			revertRisk{},
			protectionLevel{},
			talkIntensity{},
			citationGap{},
			blacklistShare{},
			eventImbalance{},
			recencyScore{},
			adqScore{},
			domainDominance{},
			sockpuppet{},
			anonEdit{},
			contributorBalance{},
			monopolization{},
			editSporadicity{},
		},
	}
}

// Metrics exposes the registered units in their fixed order.
func (r *Registry) Metrics() []Metric {
	return r.metrics
}

// Run executes every metric against the bundle with per-metric failure
// isolation: an error or panic degrades that metric to its minimum value with
// Failed set and never aborts siblings.
func (r *Registry) Run(bundle *domain.RawDataBundle) []domain.MetricResult {
	results := make([]domain.MetricResult, 0, len(r.metrics))
	for _, m := range r.metrics {
		results = append(results, r.runOne(m, bundle))
	}
	return results
}

func (r *Registry) runOne(m Metric, bundle *domain.RawDataBundle) (result domain.MetricResult) {
	result = domain.MetricResult{
		Name:     m.Name(),
		Category: m.Category(),
		Min:      0,
		Max:      1,
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.warn("metric panicked", "metric", m.Name(), "panic", rec)
			telemetry.MetricFailures.WithLabelValues(m.Name()).Inc()
			result.Value = result.Min
			result.Detail = nil
			result.Failed = true
		}
	}()

	value, detail, err := m.Compute(bundle)
	if err != nil {
		r.warn("metric failed", "metric", m.Name(), "page", bundle.Title, "error", err)
		telemetry.MetricFailures.WithLabelValues(m.Name()).Inc()
		result.Value = result.Min
		result.Failed = true
		return result
	}

	result.Value = clamp(value, result.Min, result.Max)
	result.Detail = detail
	return result
}

func (r *Registry) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// requireFetched returns an error when a fetch operation the metric depends
// on did not complete, so the result is marked failed instead of silently
// scoring empty data.
func requireFetched(b *domain.RawDataBundle, ops ...string) error {
	if reason, failed := b.Failed(ops...); failed {
		return fmt.Errorf("source data unavailable: %s", reason)
	}
	return nil
}
