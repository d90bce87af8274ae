package resolve

import (
	"fmt"
	"net/url"
	"strings"

	"wikimetron/internal/domain"
)

// Input is one raw page identifier as submitted by the caller: either a full
// wiki URL or a bare title with an optional explicit language.
type Input struct {
	Page     string
	Language string
}

// Resolved is the canonical (title, language) key for one input, in the
// original submission position.
type Resolved struct {
	OriginalInput string
	Title         string
	Language      string
	// Duplicate marks inputs whose key already appeared earlier in the
	// batch; they are reported but not analyzed twice.
	Duplicate bool
}

// Key returns the dedup key shared by equivalent inputs.
func (r Resolved) Key() string {
	return r.Title + "|" + r.Language
}

// Page normalizes a single raw identifier. URLs of the form
// https://{lang}.wikipedia.org/wiki/{Title} carry their own language; bare
// titles fall back to the explicit language, then the task default. Neither
// present fails with domain.ErrUnresolvedLanguage.
func Page(in Input, defaultLanguage string) (Resolved, error) {
	raw := strings.TrimSpace(in.Page)
	if raw == "" {
		return Resolved{}, fmt.Errorf("empty page input: %w", domain.ErrSubmissionInvalid)
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		title, lang, err := fromURL(raw)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{OriginalInput: in.Page, Title: title, Language: lang}, nil
	}

	lang := strings.ToLower(strings.TrimSpace(in.Language))
	if lang == "" {
		lang = strings.ToLower(strings.TrimSpace(defaultLanguage))
	}
	if lang == "" {
		return Resolved{}, fmt.Errorf("page %q: %w", raw, domain.ErrUnresolvedLanguage)
	}

	return Resolved{OriginalInput: in.Page, Title: normalizeTitle(raw), Language: lang}, nil
}

// Batch resolves every input, preserving submission order, and marks inputs
// whose canonical key already appeared. A per-input resolution failure is
// returned in the errs slice at the same position rather than failing the
// batch.
func Batch(inputs []Input, defaultLanguage string) ([]Resolved, []error) {
	resolved := make([]Resolved, len(inputs))
	errs := make([]error, len(inputs))
	seen := map[string]struct{}{}

	for i, in := range inputs {
		r, err := Page(in, defaultLanguage)
		if err != nil {
			resolved[i] = Resolved{OriginalInput: in.Page}
			errs[i] = err
			continue
		}
		if _, ok := seen[r.Key()]; ok {
			r.Duplicate = true
		} else {
			seen[r.Key()] = struct{}{}
		}
		resolved[i] = r
	}

	return resolved, errs
}

func fromURL(raw string) (title, lang string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse page url %q: %w", raw, err)
	}

	host := strings.ToLower(parsed.Hostname())
	suffix := ".wikipedia.org"
	if !strings.HasSuffix(host, suffix) {
		return "", "", fmt.Errorf("url %q: %w", raw, domain.ErrUnresolvedLanguage)
	}
	lang = strings.TrimSuffix(host, suffix)
	if lang == "" || strings.Contains(lang, ".") {
		return "", "", fmt.Errorf("url %q: %w", raw, domain.ErrUnresolvedLanguage)
	}

	const marker = "/wiki/"
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return "", "", fmt.Errorf("url %q has no /wiki/ path: %w", raw, domain.ErrUnresolvedLanguage)
	}

	rawTitle := parsed.Path[idx+len(marker):]
	decoded, err := url.PathUnescape(rawTitle)
	if err != nil {
		decoded = rawTitle
	}

	title = normalizeTitle(decoded)
	if title == "" {
		return "", "", fmt.Errorf("url %q has an empty title: %w", raw, domain.ErrSubmissionInvalid)
	}
	return title, lang, nil
}

func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "_", " ")
	return strings.TrimSpace(title)
}
