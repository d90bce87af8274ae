package metric

import (
	"fmt"
	"sort"

	"wikimetron/internal/domain"
)

// Spike normalization references: a raw spike at the reference value maps to
// a score of 1. Carried over from the tuned pipeline constants.
const (
	pageviewSpikeReference = 37.2002
	editSpikeReference     = 22.0
)

// spikeScore measures how far the series maximum stands above its median:
// (max - median) / (median + 1). Flat or empty series score zero.
func spikeScore(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	max := series[0]
	for _, v := range series {
		if v > max {
			max = v
		}
	}
	med := median(series)
	if max <= med {
		return 0
	}
	return (max - med) / (med + 1)
}

func median(series []float64) float64 {
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// pageviewSpike scores abnormal traffic peaks inside the analysis window.
type pageviewSpike struct{}

func (pageviewSpike) Name() string              { return "pageview_spike" }
func (pageviewSpike) Category() domain.Category { return domain.CategoryHeat }

func (pageviewSpike) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchPageviews); err != nil {
		return 0, nil, err
	}
	series := make([]float64, len(b.Pageviews))
	for i, point := range b.Pageviews {
		series[i] = float64(point.Views)
	}
	return spikeScore(series) / pageviewSpikeReference, nil, nil
}

// editSpike scores abnormal edit bursts: revisions in the window are grouped
// per day and the daily series goes through the same spike formula.
type editSpike struct{}

func (editSpike) Name() string              { return "edit_spike" }
func (editSpike) Category() domain.Category { return domain.CategoryHeat }

func (editSpike) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}

	days := b.Range.Days()
	if days <= 0 {
		return 0, nil, fmt.Errorf("empty analysis window")
	}
	daily := make([]float64, days)
	for _, rev := range b.InRange() {
		idx := int(rev.Timestamp.Sub(b.Range.Start).Hours() / 24)
		if idx >= 0 && idx < days {
			daily[idx]++
		}
	}
	return spikeScore(daily) / editSpikeReference, nil, nil
}

// revertRisk surfaces the externally predicted revert probability.
type revertRisk struct{}

func (revertRisk) Name() string              { return "revert_risk" }
func (revertRisk) Category() domain.Category { return domain.CategoryHeat }

func (revertRisk) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	// The sample is drawn from the revision history, so a failed revision
	// fetch leaves nothing to score either.
	if err := requireFetched(b, domain.FetchRevertRisk, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	if b.RevertRiskSampled == 0 {
		return 0, nil, nil
	}
	return b.RevertRisk, nil, nil
}

// protectionScores maps MediaWiki edit-protection levels to an ordinal
// severity.
var protectionScores = map[string]float64{
	"":                          0,
	"autoconfirmed":             0.25,
	"editautopatrolprotected":   0.25,
	"editextendedsemiprotected": 0.5,
	"extendedconfirmed":         0.5,
	"templateeditor":            0.75,
	"editautoreviewprotected":   0.75,
	"sysop":                     1,
}

// protectionLevel scores the strictest edit protection currently applied.
type protectionLevel struct{}

func (protectionLevel) Name() string              { return "protection_level" }
func (protectionLevel) Category() domain.Category { return domain.CategoryHeat }

func (protectionLevel) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchProtection); err != nil {
		return 0, nil, err
	}
	var score float64
	var detail []string
	for _, level := range b.ProtectionLevels {
		s, known := protectionScores[level]
		if !known {
			// Unknown custom levels count as fully restricted.
			s = 1
		}
		if s > score {
			score = s
		}
		detail = append(detail, level)
	}
	return score, detail, nil
}

// talkIntensity scores discussion activity: 0.1 per talk-page revision in
// the window, capped at 1.
type talkIntensity struct{}

func (talkIntensity) Name() string              { return "talk_intensity" }
func (talkIntensity) Category() domain.Category { return domain.CategoryHeat }

func (talkIntensity) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchTalk); err != nil {
		return 0, nil, err
	}
	return 0.1 * float64(b.TalkRevisionCount), nil, nil
}
