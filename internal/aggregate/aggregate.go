// Package aggregate folds individual metric results into category scores and
// the final sensitivity value.
package aggregate

import (
	"wikimetron/internal/domain"
)

// Weights assigns each metric its contribution inside its category. The
// category totals are fixed: heat sums to 15, quality to 28 and behaviour
// to 21.
var Weights = map[string]float64{
	// Heat
	"pageview_spike":   5,
	"edit_spike":       4,
	"revert_risk":      3,
	"protection_level": 2,
	"talk_intensity":   1,

	// Quality
	"citation_gap":     6,
	"blacklist_share":  5,
	"event_imbalance":  4,
	"recency_score":    3,
	"adq_score":        2,
	"domain_dominance": 8,

	// Behaviour
	"sockpuppet":          10,
	"anon_edit":           4,
	"contributor_balance": 3,
	"monopolization":      3,
	"edit_sporadicity":    1,
}

// Score folds the metric results into per-category scores and the composite
// sensitivity. Each category is the weighted mean of its metrics; a failed
// metric contributes zero value but keeps its weight in the denominator, so
// missing data can only lower a score, never raise it. Results are consumed
// in slice order, which makes the fold bit-for-bit deterministic.
func Score(results []domain.MetricResult) domain.Scores {
	type fold struct {
		weighted float64
		weight   float64
	}
	folds := map[domain.Category]*fold{
		domain.CategoryHeat:      {},
		domain.CategoryQuality:   {},
		domain.CategoryBehaviour: {},
	}

	for _, res := range results {
		w, ok := Weights[res.Name]
		if !ok {
			continue
		}
		f, ok := folds[res.Category]
		if !ok {
			continue
		}
		f.weight += w
		if !res.Failed {
			f.weighted += w * res.Value
		}
	}

	category := func(c domain.Category) float64 {
		f := folds[c]
		if f.weight == 0 {
			return 0
		}
		return f.weighted / f.weight
	}

	scores := domain.CategoryScores{
		Heat:      category(domain.CategoryHeat),
		Quality:   category(domain.CategoryQuality),
		Behaviour: category(domain.CategoryBehaviour),
	}
	sensitivity := (scores.Heat + scores.Quality + scores.Behaviour) / 3 * 100

	return domain.Scores{
		Categories:  scores,
		Sensitivity: sensitivity,
	}
}
