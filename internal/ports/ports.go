package ports

import (
	"context"
	"time"

	"wikimetron/internal/domain"
)

// Namespace selects which page of a title a content fetch targets.
type Namespace string

const (
	NamespaceArticle Namespace = "article"
	NamespaceTalk    Namespace = "talk"
)

// Source pulls raw signals from the upstream Wikimedia services. All calls
// respect the shared outbound rate ceiling and retry transient failures
// internally; an error means retries were exhausted for that call only.
type Source interface {
	// Revisions returns up to the configured cap of revisions no newer
	// than end, newest first, following continuation tokens. A zero since
	// leaves the lower bound open.
	Revisions(ctx context.Context, title, lang string, since, end time.Time) ([]domain.Revision, error)

	// Protection returns the edit-protection levels per title in one
	// batched API call.
	Protection(ctx context.Context, lang string, titles []string) (map[string][]string, error)

	// Content returns the current wikitext of the article or its talk
	// page. A missing page yields domain.ErrPageMissing.
	Content(ctx context.Context, title, lang string, ns Namespace) (string, error)

	// ExternalHosts returns the hosts of external links referenced by the
	// rendered page.
	ExternalHosts(ctx context.Context, title, lang string) ([]string, error)

	// Pageviews returns the daily view series for the window.
	Pageviews(ctx context.Context, title, lang string, start, end time.Time) ([]domain.PageviewPoint, error)

	// RevertRisk returns the predicted probability that the revision will
	// be reverted.
	RevertRisk(ctx context.Context, revisionID int64, lang string) (float64, error)

	// UserContribs returns recent size diffs of a user's own edits, for
	// the per-contributor balance metric.
	UserContribs(ctx context.Context, user, lang string, limit int, end time.Time) ([]int64, error)
}

// Cache is the short-lived response cache in front of the source. It is not
// a correctness boundary: a miss is always resolvable by calling through.
type Cache interface {
	Get(key string) (any, bool)
	Put(key string, value any, ttl time.Duration)
}
