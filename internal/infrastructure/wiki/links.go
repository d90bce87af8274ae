package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wikimetron/internal/domain"
)

type parseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
	Error *apiError `json:"error"`
}

// ExternalHosts renders the page through action=parse and extracts the hosts
// of its external links, duplicates preserved so dominance ratios keep their
// meaning.
func (c *Client) ExternalHosts(ctx context.Context, title, lang string) ([]string, error) {
	const op = "extlinks"

	params := url.Values{
		"action":        []string{"parse"},
		"format":        []string{"json"},
		"formatversion": []string{"2"},
		"page":          []string{title},
		"prop":          []string{"text"},
		"redirects":     []string{"1"},
	}

	var resp parseResponse
	if err := c.getJSON(ctx, surfaceMediaWiki, op, c.apiURL(lang), params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == "missingtitle" {
			return nil, fmt.Errorf("%s (%s): %w", title, lang, domain.ErrPageMissing)
		}
		return nil, &domain.SourceError{Surface: surfaceMediaWiki, Op: op, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
	}

	return extractHosts(resp.Parse.Text)
}

// extractHosts pulls hosts from anchors MediaWiki marks as external in the
// rendered HTML.
func extractHosts(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}

	var hosts []string
	doc.Find("a.external[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		host := strings.ToLower(parsed.Hostname())
		if host == "" {
			return
		}
		hosts = append(hosts, host)
	})

	return hosts, nil
}
