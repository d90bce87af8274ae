package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wikimetron/internal/aggregate"
	"wikimetron/internal/domain"
	"wikimetron/internal/infrastructure/wiki"
	"wikimetron/internal/metric"
	"wikimetron/internal/ports"
	"wikimetron/internal/refdata"
)

const (
	// revertRiskSample bounds how many of the newest in-range revisions are
	// sent to the inference service per page.
	revertRiskSample = 5

	// balanceUsers and balanceContribs bound the per-contributor history
	// lookups feeding the contributor balance metric.
	balanceUsers    = 5
	balanceContribs = 50
)

// noLowerBound leaves the revision fetch open-ended towards the past so that
// staleness can look beyond the analysis window.
var noLowerBound time.Time

// Pipeline runs the full analysis for one resolved page: fetch the raw data
// bundle, run every metric against it and fold the results into scores.
type Pipeline struct {
	source      ports.Source
	registry    *metric.Registry
	blacklist   *refdata.Set
	sockpuppets *refdata.Set
	logger      *slog.Logger
}

func NewPipeline(source ports.Source, registry *metric.Registry, blacklist, sockpuppets *refdata.Set, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source:      source,
		registry:    registry,
		blacklist:   blacklist,
		sockpuppets: sockpuppets,
		logger:      logger,
	}
}

// Analyze fetches the bundle and scores it. Only a missing page or a failed
// revision fetch aborts the unit; every other source failure is recorded on
// the bundle and degrades the dependent metrics instead.
func (p *Pipeline) Analyze(ctx context.Context, title, lang string, rng domain.DateRange) (*domain.RawDataBundle, []domain.MetricResult, domain.Scores, error) {
	bundle, err := p.fetchBundle(ctx, title, lang, rng)
	if err != nil {
		return nil, nil, domain.Scores{}, err
	}

	results := p.registry.Run(bundle)
	scores := aggregate.Score(results)
	return bundle, results, scores, nil
}

// fetchBundle pulls every raw signal for the page. The revision history comes
// first since several later steps sample from it; the remaining independent
// fetches run concurrently under the shared rate limit.
func (p *Pipeline) fetchBundle(ctx context.Context, title, lang string, rng domain.DateRange) (*domain.RawDataBundle, error) {
	bundle := &domain.RawDataBundle{
		Title:    title,
		Language: lang,
		Range:    rng,
	}

	revisions, err := p.source.Revisions(ctx, title, lang, noLowerBound, rng.End)
	if err != nil {
		if errors.Is(err, domain.ErrPageMissing) {
			return nil, fmt.Errorf("page %q (%s): %w", title, lang, domain.ErrPageMissing)
		}
		bundle.MarkFailed(domain.FetchRevisions, err.Error())
		p.warn("revisions fetch failed", "page", title, "lang", lang, "error", err)
	}
	bundle.Revisions = revisions

	var mu sync.Mutex
	markFailed := func(op string, err error) {
		mu.Lock()
		bundle.MarkFailed(op, err.Error())
		mu.Unlock()
		p.warn("fetch failed", "op", op, "page", title, "lang", lang, "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := p.source.Content(gctx, title, lang, ports.NamespaceArticle)
		if err != nil && !errors.Is(err, domain.ErrPageMissing) {
			markFailed(domain.FetchContent, err)
			return nil
		}
		bundle.Wikitext = text
		return nil
	})

	g.Go(func() error {
		text, err := p.source.Content(gctx, title, lang, ports.NamespaceTalk)
		if err != nil && !errors.Is(err, domain.ErrPageMissing) {
			markFailed(domain.FetchTalk, err)
			return nil
		}
		bundle.TalkWikitext = text

		talkRevs, err := p.source.Revisions(gctx, wiki.TalkTitle(title, lang), lang, rng.Start, rng.End)
		if err != nil {
			if !errors.Is(err, domain.ErrPageMissing) {
				markFailed(domain.FetchTalk, err)
			}
			return nil
		}
		bundle.TalkRevisionCount = len(talkRevs)
		return nil
	})

	g.Go(func() error {
		hosts, err := p.source.ExternalHosts(gctx, title, lang)
		if err != nil && !errors.Is(err, domain.ErrPageMissing) {
			markFailed(domain.FetchExtLinks, err)
			return nil
		}
		bundle.ExternalHosts = hosts
		bundle.BlacklistMatches = p.matchBlacklist(hosts)
		return nil
	})

	g.Go(func() error {
		points, err := p.source.Pageviews(gctx, title, lang, rng.Start, rng.End)
		if err != nil {
			markFailed(domain.FetchPageviews, err)
			return nil
		}
		bundle.Pageviews = points
		return nil
	})

	g.Go(func() error {
		levels, err := p.source.Protection(gctx, lang, []string{title})
		if err != nil {
			markFailed(domain.FetchProtection, err)
			return nil
		}
		bundle.ProtectionLevels = levels[title]
		return nil
	})

	g.Go(func() error {
		p.fetchRevertRisk(gctx, bundle, markFailed)
		return nil
	})

	g.Go(func() error {
		p.fetchContributorBalances(gctx, bundle, markFailed)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle.SockpuppetMatches = p.matchSockpuppets(bundle)
	return bundle, nil
}

// fetchRevertRisk scores the newest in-range revisions through the inference
// service and keeps their mean. Partial failures shrink the sample; only a
// sample that failed entirely marks the operation failed.
func (p *Pipeline) fetchRevertRisk(ctx context.Context, bundle *domain.RawDataBundle, markFailed func(string, error)) {
	inRange := bundle.InRange()
	if len(inRange) > revertRiskSample {
		inRange = inRange[:revertRiskSample]
	}
	if len(inRange) == 0 {
		return
	}

	var sum float64
	var sampled int
	var lastErr error
	for _, rev := range inRange {
		prob, err := p.source.RevertRisk(ctx, rev.ID, bundle.Language)
		if err != nil {
			lastErr = err
			continue
		}
		sum += prob
		sampled++
	}

	if sampled == 0 {
		markFailed(domain.FetchRevertRisk, lastErr)
		return
	}
	bundle.RevertRisk = sum / float64(sampled)
	bundle.RevertRiskSampled = sampled
}

// fetchContributorBalances pulls the recent edit history of the most recently
// active registered contributors and derives each one's add/delete imbalance.
func (p *Pipeline) fetchContributorBalances(ctx context.Context, bundle *domain.RawDataBundle, markFailed func(string, error)) {
	users := recentRegisteredUsers(bundle.Revisions, balanceUsers)
	if len(users) == 0 {
		return
	}

	balances := make(map[string]float64, len(users))
	var lastErr error
	for _, user := range users {
		diffs, err := p.source.UserContribs(ctx, user, bundle.Language, balanceContribs, bundle.Range.End)
		if err != nil {
			lastErr = err
			continue
		}
		balances[user] = diffImbalance(diffs)
	}

	if len(balances) == 0 && lastErr != nil {
		markFailed(domain.FetchContributions, lastErr)
		return
	}
	bundle.ContributorBalances = balances
}

// recentRegisteredUsers returns up to limit distinct registered usernames in
// newest-first revision order, skipping anonymous and temporary accounts.
func recentRegisteredUsers(revisions []domain.Revision, limit int) []string {
	seen := make(map[string]struct{})
	var users []string
	for _, rev := range revisions {
		if rev.Anonymous || rev.User == "" || domain.IsTemporaryUser(rev.User) {
			continue
		}
		if _, ok := seen[rev.User]; ok {
			continue
		}
		seen[rev.User] = struct{}{}
		users = append(users, rev.User)
		if len(users) == limit {
			break
		}
	}
	return users
}

// diffImbalance is |adds-dels|/(adds+dels) over the sign of each size diff.
func diffImbalance(diffs []int64) float64 {
	var adds, dels int
	for _, d := range diffs {
		switch {
		case d > 0:
			adds++
		case d < 0:
			dels++
		}
	}
	total := adds + dels
	if total == 0 {
		return 0
	}
	imbalance := adds - dels
	if imbalance < 0 {
		imbalance = -imbalance
	}
	return float64(imbalance) / float64(total)
}

func (p *Pipeline) matchBlacklist(hosts []string) []string {
	if p.blacklist == nil || p.blacklist.Len() == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var matches []string
	for _, host := range hosts {
		matched, ok := p.blacklist.MatchHost(host)
		if !ok {
			continue
		}
		if _, dup := seen[matched]; dup {
			continue
		}
		seen[matched] = struct{}{}
		matches = append(matches, matched)
	}
	return matches
}

func (p *Pipeline) matchSockpuppets(bundle *domain.RawDataBundle) []string {
	if p.sockpuppets == nil || p.sockpuppets.Len() == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var matches []string
	for _, rev := range bundle.InRange() {
		if !p.sockpuppets.Contains(rev.User) {
			continue
		}
		if _, dup := seen[rev.User]; dup {
			continue
		}
		seen[rev.User] = struct{}{}
		matches = append(matches, rev.User)
	}
	return matches
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
