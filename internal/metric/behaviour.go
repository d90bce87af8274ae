package metric

import (
	"math"

	"wikimetron/internal/domain"
)

// sockpuppet flags pages edited by accounts from the known sockpuppet list.
// A single hit scores the maximum; the matched usernames go into the detail.
type sockpuppet struct{}

func (sockpuppet) Name() string              { return "sockpuppet" }
func (sockpuppet) Category() domain.Category { return domain.CategoryBehaviour }

func (sockpuppet) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	if len(b.SockpuppetMatches) == 0 {
		return 0, nil, nil
	}
	return 1, b.SockpuppetMatches, nil
}

// anonEdit scores the share of unregistered activity: 0.1 per anonymous or
// temporary-account edit in the window, capped at 1.
type anonEdit struct{}

func (anonEdit) Name() string              { return "anon_edit" }
func (anonEdit) Category() domain.Category { return domain.CategoryBehaviour }

func (anonEdit) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	var count int
	for _, rev := range b.InRange() {
		if rev.Anonymous || domain.IsTemporaryUser(rev.User) {
			count++
		}
	}
	return 0.1 * float64(count), nil, nil
}

// contributorBalance averages the add/delete imbalance of the recent
// contributors' own editing histories. Contributors who only ever add or
// only ever remove push the score towards 1.
type contributorBalance struct{}

func (contributorBalance) Name() string              { return "contributor_balance" }
func (contributorBalance) Category() domain.Category { return domain.CategoryBehaviour }

func (contributorBalance) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	// Contributor histories are keyed off the revision list, so a failed
	// revision fetch leaves no contributors to assess.
	if err := requireFetched(b, domain.FetchContributions, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	if len(b.ContributorBalances) == 0 {
		return 0, nil, nil
	}
	var sum float64
	for _, balance := range b.ContributorBalances {
		sum += balance
	}
	return sum / float64(len(b.ContributorBalances)), nil, nil
}

// monopolizationDepth bounds how many of the newest revisions the
// monopolization share is computed over.
const monopolizationDepth = 10

// monopolization is the share of the newest revisions authored by the most
// active single contributor.
type monopolization struct{}

func (monopolization) Name() string              { return "monopolization" }
func (monopolization) Category() domain.Category { return domain.CategoryBehaviour }

func (monopolization) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	revs := b.Revisions
	if len(revs) > monopolizationDepth {
		revs = revs[:monopolizationDepth]
	}
	if len(revs) == 0 {
		return 0, nil, nil
	}
	counts := make(map[string]int)
	for _, rev := range revs {
		counts[rev.User]++
	}
	var topUser string
	var top int
	for user, n := range counts {
		if n > top || (n == top && user < topUser) {
			topUser, top = user, n
		}
	}
	return float64(top) / float64(len(revs)), []string{topUser}, nil
}

// editSporadicity measures how irregular the editing rhythm is inside the
// window, as the coefficient of variation of inter-edit intervals squashed
// into [0,1) via cv/(cv+1). Fewer than three in-range edits score 0.
type editSporadicity struct{}

func (editSporadicity) Name() string              { return "edit_sporadicity" }
func (editSporadicity) Category() domain.Category { return domain.CategoryBehaviour }

func (editSporadicity) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	inRange := b.InRange()
	if len(inRange) < 3 {
		return 0, nil, nil
	}

	intervals := make([]float64, 0, len(inRange)-1)
	for i := 0; i < len(inRange)-1; i++ {
		gap := inRange[i].Timestamp.Sub(inRange[i+1].Timestamp).Hours()
		if gap < 0 {
			gap = -gap
		}
		intervals = append(intervals, gap)
	}

	var mean float64
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))
	if mean == 0 {
		return 0, nil, nil
	}

	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))

	cv := math.Sqrt(variance) / mean
	return cv / (cv + 1), nil, nil
}
