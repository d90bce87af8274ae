package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"wikimetron/internal/domain"
)

func TestFromTaskShapesPages(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC)
	completed := created.Add(42 * time.Second)

	task := &domain.Task{
		ID:          "abc-123",
		Status:      domain.TaskCompleted,
		CreatedAt:   created,
		CompletedAt: completed,
		Units: []*domain.PageUnit{
			{
				Title:    "Paris",
				Language: "fr",
				Status:   domain.UnitCompleted,
				Scores: &domain.Scores{
					Categories:  domain.CategoryScores{Heat: 0.5, Quality: 0.25, Behaviour: 0.1},
					Sensitivity: 28.333333,
				},
				Results: []domain.MetricResult{
					{Name: "sockpuppet", Category: domain.CategoryBehaviour, Value: 1, Detail: []string{"Sleeper"}},
					{Name: "pageview_spike", Category: domain.CategoryHeat, Value: 0.12345, Failed: true},
				},
				Bundle: &domain.RawDataBundle{
					SockpuppetMatches: []string{"Sleeper"},
					BlacklistMatches:  []string{"fakenews.example"},
				},
			},
			{
				OriginalInput: "Ghost",
				Title:         "Ghost",
				Language:      "fr",
				Status:        domain.UnitError,
				Err:           "page missing",
			},
		},
	}

	got := FromTask(task)

	if got.TaskID != "abc-123" || got.Status != "completed" {
		t.Fatalf("task header mismatch: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("completed_at mismatch: %v", got.CompletedAt)
	}
	if len(got.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(got.Pages))
	}

	page := got.Pages[0]
	if page.Scores == nil {
		t.Fatalf("completed page must carry scores")
	}
	if page.Scores.Heat != 50 || page.Scores.Risk != 10 || page.Scores.Sensitivity != 28.33 {
		t.Fatalf("score shaping mismatch: %+v", page.Scores)
	}
	if page.Metrics["pageview_spike"].Value != 0.1235 {
		t.Fatalf("metric value not rounded: %v", page.Metrics["pageview_spike"].Value)
	}
	if !page.Metrics["pageview_spike"].Failed {
		t.Fatalf("failed flag lost")
	}
	if len(page.DetectedSockpuppets) != 1 || len(page.DetectedSuspiciousSources) != 1 {
		t.Fatalf("detections missing: %+v", page)
	}

	failed := got.Pages[1]
	if failed.Status != "error" || failed.Error != "page missing" {
		t.Fatalf("failed page mismatch: %+v", failed)
	}
	if failed.Scores != nil {
		t.Fatalf("failed page must not carry scores")
	}
}

func TestReportJSONFieldNames(t *testing.T) {
	t.Parallel()

	task := &domain.Task{
		ID:        "t",
		Status:    domain.TaskCompleted,
		CreatedAt: time.Now().UTC(),
		Units: []*domain.PageUnit{{
			Title:    "Paris",
			Language: "fr",
			Status:   domain.UnitCompleted,
			Scores:   &domain.Scores{},
			Bundle:   &domain.RawDataBundle{SockpuppetMatches: []string{"X"}},
		}},
	}

	raw, err := json.Marshal(FromTask(task))
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	body := string(raw)
	for _, field := range []string{
		`"task_id"`, `"created_at"`, `"pages"`, `"scores"`,
		`"risk"`, `"sensitivity"`, `"detected_sockpuppets"`,
	} {
		if !strings.Contains(body, field) {
			t.Fatalf("field %s missing from payload: %s", field, body)
		}
	}
}
