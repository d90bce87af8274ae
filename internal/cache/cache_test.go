package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"wikimetron/internal/domain"
	"wikimetron/internal/ports"
)

func TestTTLCachePutGet(t *testing.T) {
	t.Parallel()

	c := New()
	c.Put("k", 42, time.Minute)

	v, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if v.(int) != 42 {
		t.Fatalf("unexpected value: %v", v)
	}
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("unexpected hit for absent key")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	t.Parallel()

	c := New()
	c.Put("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestTTLCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := Key("op", "Title", "fr", n%4)
			c.Put(key, n, time.Minute)
			c.Get(key)
		}(i)
	}
	wg.Wait()
}

func TestKeyDistinguishesParams(t *testing.T) {
	t.Parallel()

	a := Key("revisions", "Paris", "fr", 1, 2)
	b := Key("revisions", "Paris", "fr", 1, 3)
	if a == b {
		t.Fatalf("keys with different params must differ")
	}
	if a != Key("revisions", "Paris", "fr", 1, 2) {
		t.Fatalf("key must be deterministic")
	}
}

// countingSource records how many times each operation reached upstream.
type countingSource struct {
	mu         sync.Mutex
	revisions  int
	protection int
	content    int
}

func (s *countingSource) Revisions(_ context.Context, title, _ string, _, _ time.Time) ([]domain.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions++
	return []domain.Revision{{ID: 1, User: "Alice"}}, nil
}

func (s *countingSource) Protection(_ context.Context, _ string, titles []string) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protection++
	out := make(map[string][]string, len(titles))
	for _, title := range titles {
		out[title] = []string{"autoconfirmed"}
	}
	return out, nil
}

func (s *countingSource) Content(_ context.Context, _, _ string, _ ports.Namespace) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content++
	return "wikitext", nil
}

func (s *countingSource) ExternalHosts(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (s *countingSource) Pageviews(context.Context, string, string, time.Time, time.Time) ([]domain.PageviewPoint, error) {
	return nil, nil
}

func (s *countingSource) RevertRisk(context.Context, int64, string) (float64, error) {
	return 0, nil
}

func (s *countingSource) UserContribs(context.Context, string, string, int, time.Time) ([]int64, error) {
	return nil, nil
}

func TestCachedSourceFetchesOnce(t *testing.T) {
	t.Parallel()

	upstream := &countingSource{}
	src := NewCachedSource(upstream, New(), time.Minute)
	ctx := context.Background()
	end := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := src.Revisions(ctx, "Paris", "fr", time.Time{}, end); err != nil {
			t.Fatalf("Revisions: %v", err)
		}
		if _, err := src.Content(ctx, "Paris", "fr", ports.NamespaceArticle); err != nil {
			t.Fatalf("Content: %v", err)
		}
	}

	if upstream.revisions != 1 {
		t.Fatalf("expected 1 upstream revisions call, got %d", upstream.revisions)
	}
	if upstream.content != 1 {
		t.Fatalf("expected 1 upstream content call, got %d", upstream.content)
	}
}

func TestCachedSourceProtectionWarmup(t *testing.T) {
	t.Parallel()

	upstream := &countingSource{}
	src := NewCachedSource(upstream, New(), time.Minute)
	ctx := context.Background()

	if err := src.WarmProtection(ctx, "fr", []string{"Paris", "Berlin"}); err != nil {
		t.Fatalf("WarmProtection: %v", err)
	}

	for _, title := range []string{"Paris", "Berlin"} {
		levels, err := src.Protection(ctx, "fr", []string{title})
		if err != nil {
			t.Fatalf("Protection %s: %v", title, err)
		}
		if len(levels[title]) != 1 {
			t.Fatalf("missing cached protection for %s", title)
		}
	}

	if upstream.protection != 1 {
		t.Fatalf("expected a single batched upstream call, got %d", upstream.protection)
	}
}
