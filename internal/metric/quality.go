package metric

import (
	"regexp"
	"sort"
	"strings"

	"wikimetron/internal/domain"
)

// Missing-citation template names per wiki language. Languages without an
// entry fall back to citationTemplatesDefault.
var citationTemplates = map[string][]string{
	"fr": {"refnec", "référence nécessaire", "citation needed", "cn"},
	"en": {"citation needed", "cn", "fact", "verify", "clarification needed"},
	"de": {"belege fehlen", "quelle fehlt", "citation needed", "cn"},
	"es": {"cita requerida", "cr", "verificar"},
	"it": {"citazione necessaria", "citation needed", "cn", "senza fonte"},
	"pt": {"carece de fontes", "citation needed", "cn", "verificar"},
	"ru": {"нет источника", "citation needed", "источник", "cn"},
	"ja": {"要出典", "citation needed", "cn", "出典"},
	"zh": {"来源请求", "citation needed", "cn", "需要来源"},
	"ar": {"مصدر مطلوب", "citation needed", "cn", "بحاجة لمصدر"},
	"nl": {"bron", "citation needed", "cn", "verificatie"},
	"sv": {"källa behövs", "citation needed", "cn", "källa"},
	"no": {"referanse trengs", "citation needed", "cn", "kilde"},
	"da": {"kilde mangler", "citation needed", "cn", "kilde"},
	"fi": {"lähde", "citation needed", "cn", "tarkista"},
}

var citationTemplatesDefault = []string{"citation needed", "cn", "refnec", "référence nécessaire"}

var refTagPattern = regexp.MustCompile(`(?i)<ref[ >]`)

func citationPattern(lang string) *regexp.Regexp {
	templates, ok := citationTemplates[strings.ToLower(lang)]
	if !ok {
		templates = citationTemplatesDefault
	}
	quoted := make([]string, len(templates))
	for i, t := range templates {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\{\{\s*(?:` + strings.Join(quoted, "|") + `)\b[^}]*\}\}`)
}

// citationGap counts missing-citation templates at 0.02 each. A page without
// a single <ref> tag scores the maximum outright.
type citationGap struct{}

func (citationGap) Name() string              { return "citation_gap" }
func (citationGap) Category() domain.Category { return domain.CategoryQuality }

func (citationGap) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchContent); err != nil {
		return 0, nil, err
	}
	if !refTagPattern.MatchString(b.Wikitext) {
		return 1, nil, nil
	}
	matches := citationPattern(b.Language).FindAllString(b.Wikitext, -1)
	return 0.02 * float64(len(matches)), nil, nil
}

// blacklistShare scores the presence of flagged source domains among the
// page's external links: one match is suspicious, several are damning.
type blacklistShare struct{}

func (blacklistShare) Name() string              { return "blacklist_share" }
func (blacklistShare) Category() domain.Category { return domain.CategoryQuality }

func (blacklistShare) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchExtLinks); err != nil {
		return 0, nil, err
	}
	distinct := make(map[string]struct{})
	for _, host := range b.BlacklistMatches {
		distinct[host] = struct{}{}
	}
	switch len(distinct) {
	case 0:
		return 0, nil, nil
	case 1:
		return 0.5, b.BlacklistMatches, nil
	default:
		return 1, b.BlacklistMatches, nil
	}
}

// eventImbalance compares additions against deletions over the size diffs of
// the newest revisions. A page where one direction dominates scores high.
type eventImbalance struct{}

func (eventImbalance) Name() string              { return "event_imbalance" }
func (eventImbalance) Category() domain.Category { return domain.CategoryQuality }

func (eventImbalance) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	revs := b.Revisions
	if len(revs) > 10 {
		revs = revs[:10]
	}
	if len(revs) < 2 {
		return 0, nil, nil
	}
	var adds, dels int
	// Revisions are newest first, so each entry diffs against its successor.
	for i := 0; i < len(revs)-1; i++ {
		diff := revs[i].Size - revs[i+1].Size
		switch {
		case diff > 0:
			adds++
		case diff < 0:
			dels++
		}
	}
	total := adds + dels
	if total == 0 {
		return 0, nil, nil
	}
	imbalance := float64(adds - dels)
	if imbalance < 0 {
		imbalance = -imbalance
	}
	return imbalance / float64(total), nil, nil
}

// staleRevisionDepth is how many revisions back staleness is measured from:
// the age of the Nth newest revision, so a burst of recent edits does not
// mask a long-dormant page.
const staleRevisionDepth = 10

// recencyScore measures editorial staleness as the age of the tenth newest
// revision, in years capped at one. Pages with no history score the maximum.
type recencyScore struct{}

func (recencyScore) Name() string              { return "recency_score" }
func (recencyScore) Category() domain.Category { return domain.CategoryQuality }

func (recencyScore) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchRevisions); err != nil {
		return 0, nil, err
	}
	if len(b.Revisions) == 0 {
		return 1, nil, nil
	}
	idx := staleRevisionDepth - 1
	if idx >= len(b.Revisions) {
		idx = len(b.Revisions) - 1
	}
	age := b.Range.End.Sub(b.Revisions[idx].Timestamp)
	return age.Hours() / 24 / 365, nil, nil
}

// Assessment grades found in talk-page project banners, mapped so that a
// featured article scores 0 and a stub scores 1.
var (
	adqGradesFR = map[string]float64{
		"adq": 0, "ba": 0.2, "a": 0.4, "b": 0.6, "bd": 0.8, "ébauche": 1,
	}
	adqGradesEN = map[string]float64{
		"fa": 0, "a": 0.2, "ga": 0.3, "b": 0.6, "c": 0.7, "start": 0.85, "stub": 1,
	}
	adqPatternFR = regexp.MustCompile(`(?i)avancement\s*=\s*([^\s|}]+)`)
	adqPatternEN = regexp.MustCompile(`(?i)\|\s*class\s*=\s*([^\s|}]+)`)
)

// adqScore reads the article assessment grade from the talk-page banner.
// Pages with no readable banner sit at the neutral midpoint.
type adqScore struct{}

func (adqScore) Name() string              { return "adq_score" }
func (adqScore) Category() domain.Category { return domain.CategoryQuality }

func (adqScore) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchTalk); err != nil {
		return 0, nil, err
	}

	grades := adqGradesEN
	pattern := adqPatternEN
	if b.Language == "fr" {
		grades = adqGradesFR
		pattern = adqPatternFR
	}

	match := pattern.FindStringSubmatch(b.TalkWikitext)
	if match == nil {
		return 0.5, nil, nil
	}
	grade := strings.ToLower(strings.TrimSpace(match[1]))
	score, ok := grades[grade]
	if !ok {
		return 0.5, []string{grade}, nil
	}
	return score, []string{grade}, nil
}

// domainDominance is the share of external references pointing at the single
// most cited domain. Duplicated links count, so a page sourced entirely from
// one site scores 1.
type domainDominance struct{}

func (domainDominance) Name() string              { return "domain_dominance" }
func (domainDominance) Category() domain.Category { return domain.CategoryQuality }

func (domainDominance) Compute(b *domain.RawDataBundle) (float64, []string, error) {
	if err := requireFetched(b, domain.FetchExtLinks); err != nil {
		return 0, nil, err
	}
	if len(b.ExternalHosts) == 0 {
		return 0, nil, nil
	}
	counts := make(map[string]int)
	for _, host := range b.ExternalHosts {
		counts[host]++
	}
	hosts := make([]string, 0, len(counts))
	for host := range counts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	var dominant string
	var top int
	for _, host := range hosts {
		if counts[host] > top {
			dominant, top = host, counts[host]
		}
	}
	return float64(top) / float64(len(b.ExternalHosts)), []string{dominant}, nil
}
