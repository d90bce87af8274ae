package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"wikimetron/internal/domain"
)

type pageviewsResponse struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Views     int64  `json:"views"`
	} `json:"items"`
}

// Pageviews fetches the daily view series from the Wikimedia REST API. A 404
// means the article has no recorded views in the window and yields an empty
// series rather than an error.
func (c *Client) Pageviews(ctx context.Context, title, lang string, start, end time.Time) ([]domain.PageviewPoint, error) {
	const op = "pageviews"

	endpoint := fmt.Sprintf("%s/%s.wikipedia/all-access/user/%s/daily/%s/%s",
		c.pageviewsBase,
		lang,
		url.PathEscape(underscored(title)),
		start.UTC().Format("20060102"),
		end.UTC().Format("20060102"),
	)

	var resp pageviewsResponse
	err := c.getJSON(ctx, surfacePageviews, op, endpoint, nil, &resp)
	if err != nil {
		var srcErr *domain.SourceError
		if errors.As(err, &srcErr) && srcErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	points := make([]domain.PageviewPoint, 0, len(resp.Items))
	for _, item := range resp.Items {
		if len(item.Timestamp) < 8 {
			continue
		}
		day, parseErr := time.Parse("20060102", item.Timestamp[:8])
		if parseErr != nil {
			continue
		}
		points = append(points, domain.PageviewPoint{Day: day, Views: item.Views})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })
	return points, nil
}

func underscored(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		if r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
