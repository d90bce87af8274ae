// Package report shapes finished tasks into the JSON structures served to
// callers.
package report

import (
	"math"
	"time"

	"wikimetron/internal/domain"
)

// TaskReport is the pollable view of one analysis task.
type TaskReport struct {
	TaskID      string       `json:"task_id"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	Pages       []PageReport `json:"pages"`
}

// PageReport is the outcome for one submitted page, in submission order.
type PageReport struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Status   string `json:"status"`

	Scores  *ScoreReport            `json:"scores,omitempty"`
	Metrics map[string]MetricReport `json:"metrics,omitempty"`

	DetectedSockpuppets       []string `json:"detected_sockpuppets,omitempty"`
	DetectedSuspiciousSources []string `json:"detected_suspicious_sources,omitempty"`

	Error string `json:"error,omitempty"`
}

// ScoreReport carries the three category scores and the composite. The
// behaviour category is published under its historical "risk" name.
type ScoreReport struct {
	Heat        float64 `json:"heat"`
	Quality     float64 `json:"quality"`
	Risk        float64 `json:"risk"`
	Sensitivity float64 `json:"sensitivity"`
}

// MetricReport is one metric's outcome.
type MetricReport struct {
	Category string   `json:"category"`
	Value    float64  `json:"value"`
	Failed   bool     `json:"failed,omitempty"`
	Detail   []string `json:"detail,omitempty"`
}

// FromTask builds the caller-facing view of a task snapshot.
func FromTask(task *domain.Task) TaskReport {
	out := TaskReport{
		TaskID:    task.ID,
		Status:    string(task.Status),
		CreatedAt: task.CreatedAt,
		Error:     task.Err,
		Pages:     make([]PageReport, 0, len(task.Units)),
	}
	if !task.CompletedAt.IsZero() {
		completed := task.CompletedAt
		out.CompletedAt = &completed
	}
	for _, unit := range task.Units {
		out.Pages = append(out.Pages, fromUnit(unit))
	}
	return out
}

func fromUnit(unit *domain.PageUnit) PageReport {
	page := PageReport{
		Title:    unit.Title,
		Language: unit.Language,
		Status:   string(unit.Status),
		Error:    unit.Err,
	}
	if page.Title == "" {
		page.Title = unit.OriginalInput
	}

	if unit.Scores != nil {
		page.Scores = &ScoreReport{
			Heat:        round2(unit.Scores.Categories.Heat * 100),
			Quality:     round2(unit.Scores.Categories.Quality * 100),
			Risk:        round2(unit.Scores.Categories.Behaviour * 100),
			Sensitivity: round2(unit.Scores.Sensitivity),
		}
	}

	if len(unit.Results) > 0 {
		page.Metrics = make(map[string]MetricReport, len(unit.Results))
		for _, res := range unit.Results {
			page.Metrics[res.Name] = MetricReport{
				Category: string(res.Category),
				Value:    round4(res.Value),
				Failed:   res.Failed,
				Detail:   res.Detail,
			}
		}
	}

	if unit.Bundle != nil {
		page.DetectedSockpuppets = unit.Bundle.SockpuppetMatches
		page.DetectedSuspiciousSources = unit.Bundle.BlacklistMatches
	}
	return page
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
