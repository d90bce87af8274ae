package domain

import (
	"testing"
	"time"
)

func TestIsTemporaryUser(t *testing.T) {
	t.Parallel()

	cases := []struct {
		user string
		want bool
	}{
		{"~2024-12345", true},
		{"~2024-1-2", true},
		{"~2024", false},
		{"Alice", false},
		{"~abcd-123", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsTemporaryUser(tc.user); got != tc.want {
			t.Fatalf("IsTemporaryUser(%q) = %v, want %v", tc.user, got, tc.want)
		}
	}
}

func TestBundleFailureTracking(t *testing.T) {
	t.Parallel()

	b := &RawDataBundle{}
	if _, failed := b.Failed(FetchRevisions); failed {
		t.Fatalf("fresh bundle must have no failures")
	}

	b.MarkFailed(FetchRevisions, "upstream timeout")
	reason, failed := b.Failed(FetchPageviews, FetchRevisions)
	if !failed || reason != "upstream timeout" {
		t.Fatalf("expected recorded reason, got %q (%v)", reason, failed)
	}

	copied := b.FetchFailures()
	copied[FetchRevisions] = "mutated"
	if reason, _ := b.Failed(FetchRevisions); reason != "upstream timeout" {
		t.Fatalf("FetchFailures must return a copy, got %q", reason)
	}
}

func TestInRangeFiltersToWindow(t *testing.T) {
	t.Parallel()

	rng := DateRange{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	b := &RawDataBundle{
		Range: rng,
		Revisions: []Revision{
			{ID: 3, Timestamp: rng.End.AddDate(0, 0, 1)},
			{ID: 2, Timestamp: rng.Start.AddDate(0, 0, 10)},
			{ID: 1, Timestamp: rng.Start.AddDate(0, 0, -1)},
		},
	}

	in := b.InRange()
	if len(in) != 1 || in[0].ID != 2 {
		t.Fatalf("expected only the in-window revision, got %+v", in)
	}
}
