package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"wikimetron/internal/domain"
	"wikimetron/internal/metric"
	"wikimetron/internal/refdata"
)

func TestAnalyzeDegradesOnPartialFetchFailure(t *testing.T) {
	t.Parallel()

	source := newStubSource()
	source.failOps["pageviews"] = errors.New("upstream timeout")
	p := NewPipeline(source, metric.NewRegistry(nil), &refdata.Set{}, &refdata.Set{}, nil)

	bundle, results, scores, err := p.Analyze(context.Background(), "Paris", "fr", testRange)
	if err != nil {
		t.Fatalf("a single failed fetch must not abort the unit: %v", err)
	}

	failures := bundle.FetchFailures()
	if failures[domain.FetchPageviews] == "" {
		t.Fatalf("pageviews failure not recorded: %v", failures)
	}

	var spike *domain.MetricResult
	for i := range results {
		if results[i].Name == "pageview_spike" {
			spike = &results[i]
		}
	}
	if spike == nil || !spike.Failed {
		t.Fatalf("pageview_spike must be marked failed: %+v", spike)
	}
	if scores.Sensitivity < 0 || scores.Sensitivity > 100 {
		t.Fatalf("sensitivity out of range: %v", scores.Sensitivity)
	}
}

func TestAnalyzeFailsRevisionDerivedMetricsOnFetchError(t *testing.T) {
	t.Parallel()

	source := newStubSource()
	source.failOps["revisions"] = errors.New("upstream timeout")
	p := NewPipeline(source, metric.NewRegistry(nil), &refdata.Set{}, &refdata.Set{}, nil)

	bundle, results, _, err := p.Analyze(context.Background(), "Paris", "fr", testRange)
	if err != nil {
		t.Fatalf("a transient revisions failure must not abort the unit: %v", err)
	}
	if bundle.FetchFailures()[domain.FetchRevisions] == "" {
		t.Fatalf("revisions failure not recorded: %v", bundle.FetchFailures())
	}

	for _, res := range results {
		switch res.Name {
		case "revert_risk", "contributor_balance", "edit_spike":
			if !res.Failed {
				t.Errorf("%s must be marked failed without a revision history", res.Name)
			}
		case "pageview_spike":
			if res.Failed {
				t.Errorf("pageview_spike does not depend on the revision history, got failed")
			}
		}
	}
}

func TestAnalyzeMatchesReferenceDatasets(t *testing.T) {
	t.Parallel()

	source := newStubSource()
	blacklist := refdata.FromValues("fakenews.example")
	sockpuppets := refdata.FromValues("Alice")
	p := NewPipeline(source, metric.NewRegistry(nil), blacklist, sockpuppets, nil)

	bundle, results, _, err := p.Analyze(context.Background(), "Paris", "fr", testRange)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"fakenews.example"}, bundle.BlacklistMatches); diff != "" {
		t.Fatalf("blacklist matches (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Alice"}, bundle.SockpuppetMatches); diff != "" {
		t.Fatalf("sockpuppet matches (-want +got):\n%s", diff)
	}

	for _, res := range results {
		if res.Name == "sockpuppet" && res.Value != 1 {
			t.Fatalf("sockpuppet metric must fire, got %v", res.Value)
		}
		if res.Name == "blacklist_share" && res.Value != 0.5 {
			t.Fatalf("blacklist_share must be 0.5 for one host, got %v", res.Value)
		}
	}
}

func TestAnalyzeMissingPage(t *testing.T) {
	t.Parallel()

	source := newStubSource()
	source.missing["Ghost"] = true
	p := NewPipeline(source, metric.NewRegistry(nil), &refdata.Set{}, &refdata.Set{}, nil)

	_, _, _, err := p.Analyze(context.Background(), "Ghost", "fr", testRange)
	if !errors.Is(err, domain.ErrPageMissing) {
		t.Fatalf("expected ErrPageMissing, got %v", err)
	}
}

func TestRecentRegisteredUsersSkipsAnonAndTemp(t *testing.T) {
	t.Parallel()

	revs := []domain.Revision{
		{User: "Alice"},
		{User: "1.2.3.4", Anonymous: true},
		{User: "~2024-999"},
		{User: "Alice"},
		{User: "Bob"},
		{User: "Carol"},
	}
	got := recentRegisteredUsers(revs, 2)
	if diff := cmp.Diff([]string{"Alice", "Bob"}, got); diff != "" {
		t.Fatalf("users (-want +got):\n%s", diff)
	}
}

func TestDiffImbalance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		diffs []int64
		want  float64
	}{
		{"empty", nil, 0},
		{"only additions", []int64{10, 20}, 1},
		{"balanced", []int64{10, -20}, 0},
		{"skewed", []int64{10, 20, 30, -5}, 0.5},
		{"zero diffs ignored", []int64{0, 0, 5}, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := diffImbalance(tc.diffs); got != tc.want {
				t.Fatalf("diffImbalance(%v) = %v, want %v", tc.diffs, got, tc.want)
			}
		})
	}
}
