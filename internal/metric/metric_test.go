package metric

import (
	"errors"
	"testing"
	"time"

	"wikimetron/internal/domain"
)

var testRange = domain.DateRange{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
}

func testBundle() *domain.RawDataBundle {
	return &domain.RawDataBundle{
		Title:    "Paris",
		Language: "fr",
		Range:    testRange,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

type stubMetric struct {
	name   string
	value  float64
	err    error
	panics bool
	detail []string
	ran    *bool
	categ  domain.Category
}

func (m stubMetric) Name() string              { return m.name }
func (m stubMetric) Category() domain.Category { return m.categ }

func (m stubMetric) Compute(*domain.RawDataBundle) (float64, []string, error) {
	if m.ran != nil {
		*m.ran = true
	}
	if m.panics {
		panic("boom")
	}
	return m.value, m.detail, m.err
}

func TestRegistryIsolatesFailures(t *testing.T) {
	t.Parallel()

	var lastRan bool
	r := &Registry{metrics: []Metric{
		stubMetric{name: "ok", value: 0.4, categ: domain.CategoryHeat},
		stubMetric{name: "errs", err: errors.New("no data"), categ: domain.CategoryHeat},
		stubMetric{name: "panics", panics: true, categ: domain.CategoryQuality},
		stubMetric{name: "last", value: 0.9, categ: domain.CategoryBehaviour, ran: &lastRan},
	}}

	results := r.Run(testBundle())
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Failed || results[0].Value != 0.4 {
		t.Fatalf("healthy metric degraded: %+v", results[0])
	}
	if !results[1].Failed || results[1].Value != 0 {
		t.Fatalf("erroring metric must fail to its minimum: %+v", results[1])
	}
	if !results[2].Failed || results[2].Value != 0 {
		t.Fatalf("panicking metric must fail to its minimum: %+v", results[2])
	}
	if !lastRan {
		t.Fatalf("failure must not abort later metrics")
	}
}

func TestRegistryClampsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	r := &Registry{metrics: []Metric{
		stubMetric{name: "over", value: 3.7, categ: domain.CategoryHeat},
		stubMetric{name: "under", value: -1, categ: domain.CategoryHeat},
	}}

	results := r.Run(testBundle())
	if results[0].Value != 1 {
		t.Fatalf("expected clamp to 1, got %v", results[0].Value)
	}
	if results[1].Value != 0 {
		t.Fatalf("expected clamp to 0, got %v", results[1].Value)
	}
}

func TestRegistryOrderIsFixed(t *testing.T) {
	t.Parallel()

	first := NewRegistry(nil).Run(testBundle())
	second := NewRegistry(nil).Run(testBundle())

	if len(first) != 16 {
		t.Fatalf("expected 16 metrics, got %d", len(first))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("metric order not stable at %d: %s vs %s", i, first[i].Name, second[i].Name)
		}
	}
}

func TestRevisionFetchFailureFailsDerivedMetrics(t *testing.T) {
	t.Parallel()

	b := testBundle()
	b.MarkFailed(domain.FetchRevisions, "upstream timeout")

	// Every metric sampling from the revision history must report failed
	// rather than a silent zero, including the ones whose own fetch op
	// never ran because there were no revisions to sample.
	derived := map[string]bool{
		"edit_spike":          false,
		"revert_risk":         false,
		"event_imbalance":     false,
		"recency_score":       false,
		"sockpuppet":          false,
		"anon_edit":           false,
		"contributor_balance": false,
		"monopolization":      false,
		"edit_sporadicity":    false,
	}
	for _, res := range NewRegistry(nil).Run(b) {
		if _, ok := derived[res.Name]; !ok {
			continue
		}
		if !res.Failed {
			t.Errorf("%s must be marked failed when revisions are unavailable", res.Name)
		}
		derived[res.Name] = true
	}
	for name, seen := range derived {
		if !seen {
			t.Errorf("%s not found in results", name)
		}
	}
}

func TestRequireFetchedPropagatesFailureReason(t *testing.T) {
	t.Parallel()

	b := testBundle()
	b.MarkFailed(domain.FetchPageviews, "upstream timeout")

	results := NewRegistry(nil).Run(b)
	for _, res := range results {
		if res.Name == "pageview_spike" {
			if !res.Failed {
				t.Fatalf("pageview_spike must fail when its fetch failed")
			}
			return
		}
	}
	t.Fatalf("pageview_spike not found in results")
}
