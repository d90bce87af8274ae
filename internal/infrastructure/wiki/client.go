package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wikimetron/internal/domain"
	"wikimetron/internal/ports"
	"wikimetron/internal/telemetry"
)

const (
	surfaceMediaWiki  = "mediawiki"
	surfacePageviews  = "pageviews"
	surfaceRevertRisk = "revertrisk"

	defaultAPIBase       = "https://{lang}.wikipedia.org/w/api.php"
	defaultPageviewsBase = "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article"
	defaultInferenceURL  = "https://api.wikimedia.org/service/lw/inference/v1/models/revertrisk-language-agnostic:predict"
)

// Options tunes the client; zero values fall back to sane defaults.
type Options struct {
	UserAgent     string
	APIBase       string // contains a {lang} placeholder
	PageviewsBase string
	InferenceURL  string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRevisions  int
	// RequestsPerSecond and Burst configure the shared outbound token
	// bucket; the upstream enforces per-client quotas, so exceeding the
	// ceiling throttles instead of failing.
	RequestsPerSecond float64
	Burst             int
}

// Client is the rate-limited, retrying source client for the MediaWiki query
// API, the pageviews REST API, and the revert-risk inference API.
type Client struct {
	http          *http.Client
	limiter       *rate.Limiter
	logger        *slog.Logger
	userAgent     string
	apiBase       string
	pageviewsBase string
	inferenceURL  string
	maxRetries    int
	retryDelay    time.Duration
	maxRevisions  int
}

var _ ports.Source = (*Client)(nil)

// NewClient wires an HTTP client with the shared limiter.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "wikimetron/1.0 (sensitivity pipeline)"
	}
	if opts.APIBase == "" {
		opts.APIBase = defaultAPIBase
	}
	if opts.PageviewsBase == "" {
		opts.PageviewsBase = defaultPageviewsBase
	}
	if opts.InferenceURL == "" {
		opts.InferenceURL = defaultInferenceURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.MaxRevisions <= 0 {
		opts.MaxRevisions = 500
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}

	return &Client{
		http:          &http.Client{Timeout: opts.Timeout},
		limiter:       rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		logger:        logger,
		userAgent:     opts.UserAgent,
		apiBase:       opts.APIBase,
		pageviewsBase: opts.PageviewsBase,
		inferenceURL:  opts.InferenceURL,
		maxRetries:    opts.MaxRetries,
		retryDelay:    opts.RetryDelay,
		maxRevisions:  opts.MaxRevisions,
	}
}

func (c *Client) apiURL(lang string) string {
	return strings.ReplaceAll(c.apiBase, "{lang}", lang)
}

// doJSON executes one logical upstream call: token-bucket wait, bounded
// retries with exponential backoff on transient failures, JSON decode into v.
func (c *Client) doJSON(ctx context.Context, surface, op string, build func() (*http.Request, error), v any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			telemetry.UpstreamRetries.WithLabelValues(surface).Inc()
			delay := c.retryDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &domain.SourceError{Surface: surface, Op: op, Err: ctx.Err()}
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return &domain.SourceError{Surface: surface, Op: op, Err: err}
		}

		req, err := build()
		if err != nil {
			return fmt.Errorf("%s %s: build request: %w", surface, op, err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		telemetry.UpstreamRequests.WithLabelValues(surface).Inc()
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.debug("transient failure", "surface", surface, "op", op, "attempt", attempt, "error", err)
			continue
		}

		if transientStatus(resp.StatusCode) {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream status %s", resp.Status)
			c.debug("transient status", "surface", surface, "op", op, "attempt", attempt, "status", resp.Status)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return &domain.SourceError{
				Surface: surface,
				Op:      op,
				Status:  resp.StatusCode,
				Err:     fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body))),
			}
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return &domain.SourceError{Surface: surface, Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	return &domain.SourceError{Surface: surface, Op: op, Err: lastErr}
}

func (c *Client) getJSON(ctx context.Context, surface, op, rawURL string, params url.Values, v any) error {
	return c.doJSON(ctx, surface, op, func() (*http.Request, error) {
		u := rawURL
		if params != nil {
			u = rawURL + "?" + params.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, v)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
