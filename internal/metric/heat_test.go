package metric

import (
	"math"
	"testing"

	"wikimetron/internal/domain"
)

func TestSpikeScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		series []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"flat", []float64{5, 5, 5}, 0},
		{"spike", []float64{1, 1, 1, 21}, (21 - 1.0) / 2.0},
		{"zero median", []float64{0, 0, 0, 9}, 9},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := spikeScore(tc.series); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("spikeScore(%v) = %v, want %v", tc.series, got, tc.want)
			}
		})
	}
}

func TestPageviewSpike(t *testing.T) {
	t.Parallel()

	b := testBundle()
	b.Pageviews = []domain.PageviewPoint{
		{Day: day(1), Views: 100},
		{Day: day(2), Views: 100},
		{Day: day(3), Views: 100},
		{Day: day(4), Views: 4000},
	}

	got, _, err := pageviewSpike{}.Compute(b)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	want := ((4000 - 100.0) / 101.0) / pageviewSpikeReference
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}

	empty, _, err := pageviewSpike{}.Compute(testBundle())
	if err != nil || empty != 0 {
		t.Fatalf("empty series must score 0, got %v (%v)", empty, err)
	}
}

func TestEditSpikeGroupsPerDay(t *testing.T) {
	t.Parallel()

	b := testBundle()
	// Quiet month with a 12-edit burst on one day.
	for i := 0; i < 12; i++ {
		b.Revisions = append(b.Revisions, domain.Revision{User: "A", Timestamp: day(15)})
	}
	b.Revisions = append(b.Revisions,
		domain.Revision{User: "B", Timestamp: day(2)},
		domain.Revision{User: "C", Timestamp: day(25)},
	)

	got, _, err := editSpike{}.Compute(b)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	// 31 daily buckets, median 0, max 12.
	want := 12.0 / editSpikeReference
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRevertRiskPassesThroughSampledMean(t *testing.T) {
	t.Parallel()

	b := testBundle()
	b.RevertRisk = 0.62
	b.RevertRiskSampled = 3

	got, _, err := revertRisk{}.Compute(b)
	if err != nil || got != 0.62 {
		t.Fatalf("got %v (%v), want 0.62", got, err)
	}

	unsampled := testBundle()
	unsampled.RevertRisk = 0.99
	got, _, err = revertRisk{}.Compute(unsampled)
	if err != nil || got != 0 {
		t.Fatalf("no sampled revisions must score 0, got %v (%v)", got, err)
	}
}

func TestProtectionLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		levels []string
		want   float64
	}{
		{"unprotected", nil, 0},
		{"semi", []string{"autoconfirmed"}, 0.25},
		{"strictest wins", []string{"autoconfirmed", "sysop"}, 1},
		{"unknown level is strict", []string{"flaggedrevs-custom"}, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := testBundle()
			b.ProtectionLevels = tc.levels
			got, _, err := protectionLevel{}.Compute(b)
			if err != nil {
				t.Fatalf("Compute returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTalkIntensityCapsAtOne(t *testing.T) {
	t.Parallel()

	b := testBundle()
	b.TalkRevisionCount = 4
	got, _, err := talkIntensity{}.Compute(b)
	if err != nil || math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("got %v (%v), want 0.4", got, err)
	}

	b.TalkRevisionCount = 40
	raw, _, _ := talkIntensity{}.Compute(b)
	if clamp(raw, 0, 1) != 1 {
		t.Fatalf("expected clamp to 1 for heavy talk activity, got %v", raw)
	}
}
