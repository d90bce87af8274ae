package cache

import (
	"context"
	"time"

	"wikimetron/internal/domain"
	"wikimetron/internal/ports"
)

// CachedSource decorates a Source so each distinct upstream query executes at
// most once per task regardless of how many metrics need it. Misses always
// call through; the cache is never a correctness boundary.
type CachedSource struct {
	inner ports.Source
	cache ports.Cache
	ttl   time.Duration
}

var _ ports.Source = (*CachedSource)(nil)

// NewCachedSource wraps inner with the given cache and entry lifetime.
func NewCachedSource(inner ports.Source, c ports.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, cache: c, ttl: ttl}
}

// Revisions caches the capped revision list per (title, lang, since, end).
func (s *CachedSource) Revisions(ctx context.Context, title, lang string, since, end time.Time) ([]domain.Revision, error) {
	key := Key("revisions", title, lang, since.Unix(), end.Unix())
	if v, ok := s.cache.Get(key); ok {
		return v.([]domain.Revision), nil
	}
	revs, err := s.inner.Revisions(ctx, title, lang, since, end)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, revs, s.ttl)
	return revs, nil
}

// Protection serves per-title entries from cache and batches the remainder
// into a single upstream call.
func (s *CachedSource) Protection(ctx context.Context, lang string, titles []string) (map[string][]string, error) {
	out := make(map[string][]string, len(titles))
	var misses []string
	for _, title := range titles {
		if v, ok := s.cache.Get(Key("protection", title, lang)); ok {
			out[title] = v.([]string)
			continue
		}
		misses = append(misses, title)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := s.inner.Protection(ctx, lang, misses)
	if err != nil {
		return nil, err
	}
	for _, title := range misses {
		levels := fetched[title]
		s.cache.Put(Key("protection", title, lang), levels, s.ttl)
		out[title] = levels
	}
	return out, nil
}

// WarmProtection prefetches protection state for a whole batch of titles so
// later per-unit lookups are cache hits.
func (s *CachedSource) WarmProtection(ctx context.Context, lang string, titles []string) error {
	_, err := s.Protection(ctx, lang, titles)
	return err
}

// Content caches wikitext per (title, lang, namespace).
func (s *CachedSource) Content(ctx context.Context, title, lang string, ns ports.Namespace) (string, error) {
	key := Key("content", title, lang, ns)
	if v, ok := s.cache.Get(key); ok {
		return v.(string), nil
	}
	text, err := s.inner.Content(ctx, title, lang, ns)
	if err != nil {
		return "", err
	}
	s.cache.Put(key, text, s.ttl)
	return text, nil
}

// ExternalHosts caches the extracted link hosts per page.
func (s *CachedSource) ExternalHosts(ctx context.Context, title, lang string) ([]string, error) {
	key := Key("extlinks", title, lang)
	if v, ok := s.cache.Get(key); ok {
		return v.([]string), nil
	}
	hosts, err := s.inner.ExternalHosts(ctx, title, lang)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, hosts, s.ttl)
	return hosts, nil
}

// Pageviews caches the daily series per (title, lang, window).
func (s *CachedSource) Pageviews(ctx context.Context, title, lang string, start, end time.Time) ([]domain.PageviewPoint, error) {
	key := Key("pageviews", title, lang, start.Unix(), end.Unix())
	if v, ok := s.cache.Get(key); ok {
		return v.([]domain.PageviewPoint), nil
	}
	points, err := s.inner.Pageviews(ctx, title, lang, start, end)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, points, s.ttl)
	return points, nil
}

// RevertRisk caches the prediction per revision.
func (s *CachedSource) RevertRisk(ctx context.Context, revisionID int64, lang string) (float64, error) {
	key := Key("revertrisk", "", lang, revisionID)
	if v, ok := s.cache.Get(key); ok {
		return v.(float64), nil
	}
	prob, err := s.inner.RevertRisk(ctx, revisionID, lang)
	if err != nil {
		return 0, err
	}
	s.cache.Put(key, prob, s.ttl)
	return prob, nil
}

// UserContribs caches a user's recent size diffs; contributors frequently
// overlap between pages of one batch.
func (s *CachedSource) UserContribs(ctx context.Context, user, lang string, limit int, end time.Time) ([]int64, error) {
	key := Key("usercontribs", user, lang, limit, end.Unix())
	if v, ok := s.cache.Get(key); ok {
		return v.([]int64), nil
	}
	diffs, err := s.inner.UserContribs(ctx, user, lang, limit, end)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, diffs, s.ttl)
	return diffs, nil
}
