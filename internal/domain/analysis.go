package domain

import (
	"regexp"
	"time"
)

// TaskStatus enumerates the lifecycle of an analysis task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// UnitStatus enumerates the lifecycle of a single page unit inside a task.
type UnitStatus string

const (
	UnitPending   UnitStatus = "pending"
	UnitRunning   UnitStatus = "running"
	UnitCompleted UnitStatus = "completed"
	UnitError     UnitStatus = "error"
)

// DateRange bounds the analysis window. End is inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Task is a batch analysis request tracked by the task manager. It is created
// at submission and mutated only by the manager until it reaches a terminal
// state.
type Task struct {
	ID              string
	Status          TaskStatus
	Units           []*PageUnit
	Range           DateRange
	DefaultLanguage string
	CreatedAt       time.Time
	CompletedAt     time.Time
	Err             string
}

// PageUnit is one resolved (title, language) analysis target. Exactly one
// worker owns it for the duration of the run.
type PageUnit struct {
	OriginalInput string
	Title         string
	Language      string
	Status        UnitStatus
	Bundle        *RawDataBundle
	Results       []MetricResult
	Scores        *Scores
	Err           string
}

// Revision is a single page edit as reported by the MediaWiki API, newest
// first in the bundle.
type Revision struct {
	ID        int64
	ParentID  int64
	User      string
	Anonymous bool
	Minor     bool
	Timestamp time.Time
	Size      int64
}

// Temporary accounts carry autogenerated names like ~2024-12345.
var tempUserPattern = regexp.MustCompile(`^~\d{4}(?:-\d{1,5})+$`)

// IsTemporaryUser reports whether the username belongs to an autogenerated
// temporary account, which counts as unregistered activity.
func IsTemporaryUser(user string) bool {
	return tempUserPattern.MatchString(user)
}

// PageviewPoint is one day of view counts.
type PageviewPoint struct {
	Day   time.Time
	Views int64
}

// RawDataBundle aggregates everything the metric units need for one page.
// It is built once per unit and read-shared across metrics; no metric may
// mutate it.
type RawDataBundle struct {
	Title    string
	Language string
	Range    DateRange

	// Revisions holds up to the configured cap of revisions ending at
	// Range.End, without a lower time bound so that staleness can look
	// past the window.
	Revisions         []Revision
	Wikitext          string
	TalkWikitext      string
	TalkRevisionCount int
	ExternalHosts     []string
	Pageviews         []PageviewPoint
	ProtectionLevels  []string

	// RevertRisk is the mean predicted revert probability over the sampled
	// in-range revisions; RevertRiskSampled is how many were scored.
	RevertRisk        float64
	RevertRiskSampled int

	// ContributorBalances maps recent registered contributors to the
	// add/delete imbalance of their own contributions, each in [0,1].
	ContributorBalances map[string]float64

	// Matches against the local reference datasets, resolved at build time.
	BlacklistMatches  []string
	SockpuppetMatches []string

	// failures records source fetch operations that exhausted retries so
	// that dependent metrics can report themselves as failed instead of
	// silently scoring empty data.
	failures map[string]string
}

// Fetch operation names shared between the bundle builder and the metrics
// that depend on each operation's data.
const (
	FetchRevisions     = "revisions"
	FetchContent       = "content"
	FetchTalk          = "talk"
	FetchExtLinks      = "extlinks"
	FetchPageviews     = "pageviews"
	FetchProtection    = "protection"
	FetchRevertRisk    = "revertrisk"
	FetchContributions = "usercontribs"
)

// MarkFailed records that the named fetch operation could not be completed.
func (b *RawDataBundle) MarkFailed(op, reason string) {
	if b.failures == nil {
		b.failures = make(map[string]string)
	}
	b.failures[op] = reason
}

// Failed reports whether any of the named fetch operations failed, returning
// the first recorded reason.
func (b *RawDataBundle) Failed(ops ...string) (string, bool) {
	for _, op := range ops {
		if reason, ok := b.failures[op]; ok {
			return reason, true
		}
	}
	return "", false
}

// FetchFailures exposes a copy of the recorded per-operation failures.
func (b *RawDataBundle) FetchFailures() map[string]string {
	if len(b.failures) == 0 {
		return nil
	}
	out := make(map[string]string, len(b.failures))
	for k, v := range b.failures {
		out[k] = v
	}
	return out
}

// InRange filters the bundle revisions down to the analysis window.
func (b *RawDataBundle) InRange() []Revision {
	var out []Revision
	for _, rev := range b.Revisions {
		if !rev.Timestamp.Before(b.Range.Start) && !rev.Timestamp.After(b.Range.End) {
			out = append(out, rev)
		}
	}
	return out
}

// Category groups metrics into the three score dimensions.
type Category string

const (
	CategoryHeat      Category = "heat"
	CategoryQuality   Category = "quality"
	CategoryBehaviour Category = "behaviour"
)

// MetricResult is the bounded outcome of one metric unit. Value always stays
// within [Min, Max]; a metric that could not be computed reports Min with
// Failed set instead of being omitted.
type MetricResult struct {
	Name     string
	Category Category
	Value    float64
	Min      float64
	Max      float64
	Detail   []string
	Failed   bool
}

// CategoryScores holds the three normalized category scores, each in [0,1].
type CategoryScores struct {
	Heat      float64
	Quality   float64
	Behaviour float64
}

// Scores is the final per-page outcome: the category scores plus the
// composite sensitivity in [0,100].
type Scores struct {
	Categories  CategoryScores
	Sensitivity float64
}
